// Package cache stores per-provider translation results with TTL expiry
// and bounded-size FIFO eviction.
package cache

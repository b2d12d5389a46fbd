// Package session owns the lifecycle of one in-flight multi-provider
// translation request, merging provider events into coherent per-request
// state and folding completed results into the cache and history.
package session

// Package history keeps the favorite-aware log of completed translations
// with merge-or-insert semantics and bounded retention.
package history

// Package pending tracks in-flight translation requests by fingerprint
// to prevent duplicate submissions of identical work within a TTL window.
package pending

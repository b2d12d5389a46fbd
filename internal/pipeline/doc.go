// Package pipeline coordinates translation requests end to end: dedup,
// per-provider cache consultation, session aggregation, and history folding.
// It is a pure in-process coordination layer; transports and rendering live
// elsewhere.
package pipeline

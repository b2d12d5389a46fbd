// ABOUTME: Tagged event variants and the Dispatcher contract for the provider layer.
// ABOUTME: Event shape is decided once at this boundary, never sniffed downstream.

package provider

import (
	"context"
	"errors"
)

// ErrUnknownProvider indicates a requested provider has no configured profile.
var ErrUnknownProvider = errors.New("unknown provider")

// EventType tags the variant carried by an Event.
type EventType int

const (
	// EventPartial appends Delta to the provider's accumulated text.
	EventPartial EventType = iota

	// EventReplace replaces the provider's text verbatim with Text.
	// A replace is authoritative over any previously accumulated deltas.
	EventReplace

	// EventError records Err in the provider's slot. Scoped to one
	// provider; it never fails the whole session.
	EventError

	// EventAllDone is the terminal signal: every provider has reported a
	// final state. Exactly one per accepted request.
	EventAllDone
)

// Event is one provider-layer update, tagged with the request it belongs to.
type Event struct {
	RequestID string
	Provider  string
	Type      EventType
	Delta     string
	Text      string
	Err       string
	Done      bool // provider finished (set on its final Replace or Error)
}

// Request describes one multi-provider translation dispatch.
type Request struct {
	RequestID  string
	Text       string
	SourceLang string
	TargetLang string
	Providers  []string
}

// Dispatcher is the provider layer. Implementations must tag every emitted
// event with the request ID they were given, emit exactly one EventAllDone
// per accepted request, and close the channel after it. An error return
// means the provider layer could not be invoked at all; no events follow.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (<-chan *Event, error)
}

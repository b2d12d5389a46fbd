// ABOUTME: Streaming aggregator for one translation request, keyed by request ID.
// ABOUTME: Merges per-provider events, drops stale ones, and triggers cache and history writes.

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chichu1439/dict-sub000/internal/provider"
)

// State is the session lifecycle state.
type State int

const (
	// StateOpen means the session is live and accepting provider events.
	StateOpen State = iota

	// StateClosed means the all-done signal arrived (or every provider was
	// satisfied from cache) and completion side effects have run.
	StateClosed

	// StateSuperseded means a newer session was opened before this one
	// closed. Terminal; remaining events for this session are dropped.
	StateSuperseded
)

// ProviderState is the visible slot for one provider within a session.
type ProviderState struct {
	Text      string
	Err       string
	Done      bool
	FromCache bool
}

// ResultWriter is what the session needs from the result cache.
type ResultWriter interface {
	Set(text, sourceLang, targetLang, provider, result string)
}

// HistoryRecorder receives the collected provider results of a completed
// session, keyed by provider name.
type HistoryRecorder interface {
	Record(sourceText, sourceLang, targetLang string, results map[string]string)
}

// Config carries the session's identity and injected collaborators.
type Config struct {
	RequestID  string
	ReleaseKey string // fingerprint to release on completion
	Text       string
	SourceLang string
	TargetLang string

	Cache    ResultWriter
	Recorder HistoryRecorder
	Release  func(key string)
	Cancel   context.CancelFunc // courtesy cancel of the dispatch context
	Logger   *slog.Logger
}

// Session aggregates provider events for a single request ID. All
// mutations go through its mutex: event drains run on their own goroutine.
type Session struct {
	mu        sync.Mutex
	requestID string
	release   string
	text      string
	source    string
	target    string
	providers map[string]*ProviderState
	state     State
	done      chan struct{}

	cache    ResultWriter
	recorder HistoryRecorder
	releaseF func(string)
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// New creates an open session. Providers appear lazily, either via Prefill
// or on their first event.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		requestID: cfg.RequestID,
		release:   cfg.ReleaseKey,
		text:      cfg.Text,
		source:    cfg.SourceLang,
		target:    cfg.TargetLang,
		providers: make(map[string]*ProviderState),
		state:     StateOpen,
		done:      make(chan struct{}),
		cache:     cfg.Cache,
		recorder:  cfg.Recorder,
		releaseF:  cfg.Release,
		cancel:    cfg.Cancel,
		logger:    logger.With("component", "session", "request_id", cfg.RequestID),
	}
}

// RequestID returns the session's request identifier (distinct from the
// dedup fingerprint).
func (s *Session) RequestID() string { return s.requestID }

// Text returns the source text the session is translating.
func (s *Session) Text() string { return s.text }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns a copy of the per-provider state.
func (s *Session) Snapshot() map[string]ProviderState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ProviderState, len(s.providers))
	for name, ps := range s.providers {
		out[name] = *ps
	}
	return out
}

// Prefill seeds a provider slot with a fresh cached value. The slot is
// marked done and sourced-from-cache; the provider is not dispatched.
func (s *Session) Prefill(providerName, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.providers[providerName] = &ProviderState{Text: text, Done: true, FromCache: true}
}

// Run drains the dispatcher's event channel until it closes. Events keep
// being consumed after the session reaches a terminal state so a superseded
// session never blocks its producer.
func (s *Session) Run(events <-chan *provider.Event) {
	for ev := range events {
		s.HandleEvent(ev)
	}
}

// HandleEvent applies one provider event. Events whose request ID does not
// match are stale (from a superseded session) and silently dropped, as are
// events arriving after a terminal state.
func (s *Session) HandleEvent(ev *provider.Event) {
	s.mu.Lock()

	if ev.RequestID != s.requestID {
		s.mu.Unlock()
		s.logger.Debug("dropped stale event", "event_request_id", ev.RequestID)
		return
	}
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}

	if ev.Type == provider.EventAllDone {
		s.completeLocked()
		return
	}

	slot, ok := s.providers[ev.Provider]
	if !ok {
		slot = &ProviderState{}
		s.providers[ev.Provider] = slot
	}

	var writeThrough string
	switch ev.Type {
	case provider.EventError:
		// Error wins: it overwrites any partial text for this provider.
		slot.Err = ev.Err
		slot.Text = ""
		slot.Done = true
	case provider.EventReplace:
		// A full replacement is authoritative over accumulated deltas.
		slot.Text = ev.Text
		slot.Err = ""
		slot.Done = ev.Done
		slot.FromCache = false
		writeThrough = ev.Text
	case provider.EventPartial:
		slot.Text += ev.Delta
		slot.Done = ev.Done
	}
	s.mu.Unlock()

	// Replace text is written to the cache immediately, not deferred to
	// all-done, so lookups during the session see the freshest value.
	if writeThrough != "" {
		s.cache.Set(s.text, s.source, s.target, ev.Provider, writeThrough)
	}
}

// Close completes the session without an all-done event. Used when every
// provider was satisfied from cache and no dispatch happened.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.completeLocked()
}

// Supersede transitions an open session to the superseded terminal state.
// In-flight provider calls are not awaited; their late events are dropped
// by the request ID guard. The dispatch context is cancelled as a courtesy.
func (s *Session) Supersede() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateSuperseded
	close(s.done)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Debug("session superseded")
}

// completeLocked runs the completion side effects: final cache writes, a
// single history upsert, and release of the dedup slot. Must be called with
// mu held; the lock is released before collaborators are invoked.
func (s *Session) completeLocked() {
	s.state = StateClosed

	finals := make(map[string]string)
	fresh := make(map[string]string)
	for name, slot := range s.providers {
		if slot.Err != "" || slot.Text == "" {
			continue
		}
		finals[name] = slot.Text
		if !slot.FromCache {
			fresh[name] = slot.Text
		}
	}
	cancel := s.cancel
	s.mu.Unlock()

	for name, text := range fresh {
		s.cache.Set(s.text, s.source, s.target, name, text)
	}
	if len(finals) > 0 {
		s.recorder.Record(s.text, s.source, s.target, finals)
	}
	if s.releaseF != nil {
		s.releaseF(s.release)
	}
	if cancel != nil {
		cancel()
	}

	// Signalled last so a caller waking on Done observes the released
	// dedup slot and the upserted history.
	close(s.done)

	s.logger.Debug("session closed", "results", len(finals))
}

// ABOUTME: The translation request pipeline: fingerprint, dedup, cache prefill, dispatch.
// ABOUTME: Built once at process start and passed by handle; no ambient global state.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/chichu1439/dict-sub000/internal/cache"
	"github.com/chichu1439/dict-sub000/internal/history"
	"github.com/chichu1439/dict-sub000/internal/metrics"
	"github.com/chichu1439/dict-sub000/internal/pending"
	"github.com/chichu1439/dict-sub000/internal/provider"
	"github.com/chichu1439/dict-sub000/internal/session"
)

var (
	// ErrDuplicateRequest means identical work is already in flight.
	ErrDuplicateRequest = errors.New("identical translation already in flight")

	// ErrEmptyText means the request carried no text to translate.
	ErrEmptyText = errors.New("no text to translate")

	// ErrNoProviders means the request named no providers.
	ErrNoProviders = errors.New("no providers requested")
)

// Request is one user-initiated translation, regardless of entry point
// (typed input, clipboard selection, or OCR-extracted text).
type Request struct {
	Text       string
	SourceLang string // "auto" or a language tag
	TargetLang string
	Providers  []string
}

// Pipeline wires the dedup guard, result cache, history store, and
// provider dispatcher into the request flow. Construct one per process and
// inject it where needed.
type Pipeline struct {
	guard      *pending.Guard
	cache      *cache.Cache
	history    *history.Store
	dispatcher provider.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	current *session.Session
}

// New creates a pipeline. Metrics may be nil; pass nil logger for default.
func New(guard *pending.Guard, c *cache.Cache, h *history.Store, d provider.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		guard:      guard,
		cache:      c,
		history:    h,
		dispatcher: d,
		metrics:    m,
		logger:     logger.With("component", "pipeline"),
	}
}

// Translate submits a request. Duplicate in-flight work is rejected with
// ErrDuplicateRequest. Providers with a fresh cached result are prefilled
// and not dispatched; when everything is served from cache the returned
// session is already closed. Starting a new request supersedes the
// previous open session — that is how cancellation is expressed.
func (p *Pipeline) Translate(ctx context.Context, req *Request) (*session.Session, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	key, ok := p.guard.Acquire(req.Text, req.SourceLang, req.TargetLang, req.Providers)
	if !ok {
		p.logger.Debug("duplicate submission rejected", "fingerprint", key)
		return nil, ErrDuplicateRequest
	}

	requestID := uuid.New().String()
	dispatchCtx, cancel := context.WithCancel(ctx)

	sess := session.New(session.Config{
		RequestID:  requestID,
		ReleaseKey: key,
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Cache:      p.cache,
		Recorder:   &historyRecorder{pipeline: p},
		Release:    p.guard.Release,
		Cancel:     cancel,
		Logger:     p.logger,
	})

	var missing []string
	for _, name := range req.Providers {
		if entry := p.cache.Get(req.Text, req.SourceLang, req.TargetLang, name); entry != nil {
			sess.Prefill(name, entry.Text)
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) == 0 {
		// Every provider satisfied from cache: no network session, but the
		// completed result still lands in history.
		p.publish(sess)
		p.metrics.SessionOpened()
		sess.Close()
		p.logger.Debug("request served entirely from cache", "request_id", requestID)
		return sess, nil
	}

	events, err := p.dispatcher.Dispatch(dispatchCtx, &provider.Request{
		RequestID:  requestID,
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Providers:  missing,
	})
	if err != nil {
		cancel()
		p.guard.Release(key)
		p.metrics.DispatchFailure()
		return nil, fmt.Errorf("provider dispatch failed: %w", err)
	}

	p.publish(sess)
	p.metrics.SessionOpened()
	go sess.Run(events)

	p.logger.Debug("session opened",
		"request_id", requestID,
		"providers", len(req.Providers),
		"dispatched", len(missing))
	return sess, nil
}

// Current returns the most recently published session, or nil.
func (p *Pipeline) Current() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// CacheStats returns the result cache's hit/miss snapshot.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// History returns the history store.
func (p *Pipeline) History() *history.Store {
	return p.history
}

// Close releases guard timers. Call once on shutdown.
func (p *Pipeline) Close() {
	p.guard.Close()
}

// publish makes sess the current session, superseding an open predecessor.
func (p *Pipeline) publish(sess *session.Session) {
	p.mu.Lock()
	prev := p.current
	p.current = sess
	p.mu.Unlock()

	if prev != nil && prev.State() == session.StateOpen {
		prev.Supersede()
		p.metrics.SessionSuperseded()
	}
}

func validate(req *Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	if len(req.Providers) == 0 {
		return ErrNoProviders
	}
	if req.SourceLang != "" && req.SourceLang != "auto" {
		if _, err := language.Parse(req.SourceLang); err != nil {
			return fmt.Errorf("invalid source language %q: %w", req.SourceLang, err)
		}
	}
	if _, err := language.Parse(req.TargetLang); err != nil {
		return fmt.Errorf("invalid target language %q: %w", req.TargetLang, err)
	}
	return nil
}

// historyRecorder folds a completed session's results into the history
// store as a single record.
type historyRecorder struct {
	pipeline *Pipeline
}

func (r *historyRecorder) Record(sourceText, sourceLang, targetLang string, results map[string]string) {
	providers := make([]string, 0, len(results))
	for name := range results {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	parts := make([]string, 0, len(providers))
	for _, name := range providers {
		parts = append(parts, results[name])
	}

	r.pipeline.history.Upsert(&history.Record{
		SourceText: sourceText,
		TargetText: strings.Join(parts, "\n"),
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Providers:  providers,
	})
	r.pipeline.metrics.HistoryUpsert()
}

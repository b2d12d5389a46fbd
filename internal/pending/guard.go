// ABOUTME: TTL-expiring registry of in-flight request fingerprints.
// ABOUTME: Acquire is an atomic insert-if-absent; entries self-expire as a safety net.

package pending

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL bounds how long a pending entry can block duplicate submissions.
// A provider slower than this allows a duplicate through.
const DefaultTTL = 30 * time.Second

// Entry records one in-flight translation request.
type Entry struct {
	Fingerprint string
	Text        string
	SourceLang  string
	TargetLang  string
	Providers   []string
	CreatedAt   time.Time
}

type guardEntry struct {
	Entry
	timer *time.Timer
}

// Guard tracks in-flight fingerprints so identical work is submitted at most
// once concurrently. Expired entries are removed lazily on read, with a
// supplementary timer scheduled at insertion as a second line of cleanup
// against callers that crash before releasing.
type Guard struct {
	mu      sync.Mutex
	pending map[string]*guardEntry
	ttl     time.Duration
	logger  *slog.Logger
}

// NewGuard creates a guard with the given TTL. A zero or negative TTL falls
// back to DefaultTTL. Pass nil logger for default.
func NewGuard(ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		pending: make(map[string]*guardEntry),
		ttl:     ttl,
		logger:  logger.With("component", "pending"),
	}
}

// IsPending reports whether an unexpired entry exists for the request's
// fingerprint. An expired entry is deleted as a side effect.
func (g *Guard) IsPending(text, sourceLang, targetLang string, providers []string) bool {
	key := Fingerprint(text, sourceLang, targetLang, providers)

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isPendingLocked(key)
}

// Acquire atomically claims the fingerprint for the request. It returns the
// fingerprint key and true when the claim succeeded; false means identical
// work is already in flight and the caller must not submit.
func (g *Guard) Acquire(text, sourceLang, targetLang string, providers []string) (string, bool) {
	key := Fingerprint(text, sourceLang, targetLang, providers)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isPendingLocked(key) {
		return key, false
	}
	g.addLocked(key, text, sourceLang, targetLang, providers)
	return key, true
}

// Add unconditionally creates or overwrites the entry for the request and
// returns its fingerprint key. Callers using the split contract must have
// checked IsPending first; Acquire is the safer path.
func (g *Guard) Add(text, sourceLang, targetLang string, providers []string) string {
	key := Fingerprint(text, sourceLang, targetLang, providers)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(key, text, sourceLang, targetLang, providers)
	return key
}

// Release removes the entry for the given fingerprint key. Releasing an
// unknown or already-expired key is a no-op.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(key)
}

// Len returns the number of tracked entries, including any not yet swept.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Close stops all scheduled expiry timers and drops every entry.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, entry := range g.pending {
		entry.timer.Stop()
		delete(g.pending, key)
	}
}

// isPendingLocked checks and lazily expires the entry for key. Must be
// called with mu held.
func (g *Guard) isPendingLocked(key string) bool {
	entry, ok := g.pending[key]
	if !ok {
		return false
	}
	if time.Since(entry.CreatedAt) > g.ttl {
		g.removeLocked(key)
		return false
	}
	return true
}

// addLocked inserts or overwrites the entry for key and schedules its
// expiry timer. Must be called with mu held.
func (g *Guard) addLocked(key, text, sourceLang, targetLang string, providers []string) {
	if old, ok := g.pending[key]; ok {
		old.timer.Stop()
	}

	createdAt := time.Now()
	entry := &guardEntry{
		Entry: Entry{
			Fingerprint: key,
			Text:        text,
			SourceLang:  sourceLang,
			TargetLang:  targetLang,
			Providers:   append([]string(nil), providers...),
			CreatedAt:   createdAt,
		},
	}
	entry.timer = time.AfterFunc(g.ttl, func() {
		g.expire(key, createdAt)
	})
	g.pending[key] = entry

	g.logger.Debug("pending entry added", "fingerprint", key)
}

// removeLocked deletes the entry for key and stops its timer. Must be
// called with mu held.
func (g *Guard) removeLocked(key string) {
	entry, ok := g.pending[key]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(g.pending, key)
}

// expire is the timer callback. It only removes the entry it was scheduled
// for; an entry re-added after an overwrite carries a newer CreatedAt and is
// left alone.
func (g *Guard) expire(key string, createdAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.pending[key]
	if !ok || !entry.CreatedAt.Equal(createdAt) {
		return
	}
	delete(g.pending, key)
	g.logger.Debug("pending entry expired", "fingerprint", key)
}

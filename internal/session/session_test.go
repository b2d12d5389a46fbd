// ABOUTME: Tests for the streaming aggregator session.
// ABOUTME: Validates delta merge, authoritative replace, stale drop, and completion effects.

package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chichu1439/dict-sub000/internal/provider"
)

type fakeCache struct {
	mu     sync.Mutex
	writes map[string]string // provider -> result
}

func newFakeCache() *fakeCache {
	return &fakeCache{writes: make(map[string]string)}
}

func (f *fakeCache) Set(text, sourceLang, targetLang, providerName, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[providerName] = result
}

func (f *fakeCache) get(providerName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[providerName]
}

type fakeRecorder struct {
	mu      sync.Mutex
	calls   int
	results map[string]string
}

func (f *fakeRecorder) Record(sourceText, sourceLang, targetLang string, results map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.results = results
}

func newTestSession(released *[]string) (*Session, *fakeCache, *fakeRecorder) {
	fc := newFakeCache()
	fr := &fakeRecorder{}
	s := New(Config{
		RequestID:  "r1",
		ReleaseKey: "fp-1",
		Text:       "Hello",
		SourceLang: "en",
		TargetLang: "zh",
		Cache:      fc,
		Recorder:   fr,
		Release: func(key string) {
			if released != nil {
				*released = append(*released, key)
			}
		},
	})
	return s, fc, fr
}

func TestSession_DeltaAccumulation(t *testing.T) {
	s, _, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "He"})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "llo"})

	assert.Equal(t, "Hello", s.Snapshot()["A"].Text)
}

func TestSession_ReplaceIsAuthoritative(t *testing.T) {
	s, fc, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "He"})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "llo"})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventReplace, Text: "Hi"})

	assert.Equal(t, "Hi", s.Snapshot()["A"].Text, "replace must not concatenate with deltas")
	assert.Equal(t, "Hi", fc.get("A"), "replace writes through to the cache immediately")
}

func TestSession_ErrorWins(t *testing.T) {
	s, _, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "partial"})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventError, Err: "rate limited", Done: true})

	slot := s.Snapshot()["A"]
	assert.Equal(t, "rate limited", slot.Err)
	assert.Empty(t, slot.Text, "error overwrites prior partial text")
	assert.True(t, slot.Done)
	assert.Equal(t, StateOpen, s.State(), "a provider error never fails the session")
}

func TestSession_StaleEventDropped(t *testing.T) {
	s, _, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r0", Provider: "A", Type: provider.EventReplace, Text: "stale"})

	assert.Empty(t, s.Snapshot(), "an event for another request ID must not mutate state")
}

func TestSession_LazyProviderSlot(t *testing.T) {
	s, _, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "B", Type: provider.EventPartial, Delta: "x"})

	_, ok := s.Snapshot()["B"]
	assert.True(t, ok, "a provider appears on its first event")
}

func TestSession_AllDoneCompletes(t *testing.T) {
	var released []string
	s, fc, fr := newTestSession(&released)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventReplace, Text: "你好", Done: true})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "B", Type: provider.EventError, Err: "boom", Done: true})
	s.HandleEvent(&provider.Event{RequestID: "r1", Type: provider.EventAllDone})

	require.Equal(t, StateClosed, s.State())
	assert.Equal(t, "你好", fc.get("A"))
	assert.Equal(t, 1, fr.calls, "history upsert happens exactly once")
	assert.Equal(t, map[string]string{"A": "你好"}, fr.results, "errored providers are excluded")
	assert.Equal(t, []string{"fp-1"}, released, "dedup slot released on completion")

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestSession_AllDoneWithNoResultsSkipsHistory(t *testing.T) {
	s, _, fr := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventError, Err: "boom", Done: true})
	s.HandleEvent(&provider.Event{RequestID: "r1", Type: provider.EventAllDone})

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, fr.calls, "no provider produced text, so no history record")
}

func TestSession_EventsAfterCloseDropped(t *testing.T) {
	s, fc, _ := newTestSession(nil)

	s.HandleEvent(&provider.Event{RequestID: "r1", Type: provider.EventAllDone})
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventReplace, Text: "late"})

	assert.Empty(t, s.Snapshot())
	assert.Empty(t, fc.get("A"))
}

func TestSession_Supersede(t *testing.T) {
	var released []string
	s, _, fr := newTestSession(&released)

	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "He"})
	s.Supersede()

	assert.Equal(t, StateSuperseded, s.State())

	// Late events for the superseded session are dropped.
	s.HandleEvent(&provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "llo"})
	assert.Equal(t, "He", s.Snapshot()["A"].Text)

	// Supersede is not completion: no history, no release.
	assert.Equal(t, 0, fr.calls)
	assert.Empty(t, released)

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed on supersede")
	}
}

func TestSession_CloseFromCacheOnly(t *testing.T) {
	var released []string
	s, fc, fr := newTestSession(&released)

	s.Prefill("A", "你好")
	s.Prefill("B", "您好")
	s.Close()

	require.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, fr.calls, "cache-only completion still upserts history")
	assert.Equal(t, map[string]string{"A": "你好", "B": "您好"}, fr.results)
	assert.Equal(t, []string{"fp-1"}, released)
	assert.Empty(t, fc.writes, "cache-sourced slots are not written back")
}

func TestSession_RunDrainsChannel(t *testing.T) {
	s, _, _ := newTestSession(nil)

	events := make(chan *provider.Event, 4)
	events <- &provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "He"}
	events <- &provider.Event{RequestID: "r1", Provider: "A", Type: provider.EventPartial, Delta: "llo"}
	events <- &provider.Event{RequestID: "r1", Type: provider.EventAllDone}
	close(events)

	s.Run(events)

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, "Hello", s.Snapshot()["A"].Text)
}

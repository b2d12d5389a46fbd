// ABOUTME: Tests for the history store.
// ABOUTME: Validates upsert merge semantics, sticky favorites, ordering, and caps.

package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertInserts(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "foo", TargetText: "bar", SourceLang: "en", TargetLang: "zh", Providers: []string{"p1"}})

	records := s.List()
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestStore_UpsertMergesOnSourceAndTargetLang(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "foo", TargetText: "old", TargetLang: "zh"})
	s.Upsert(&Record{SourceText: "foo", TargetText: "new", TargetLang: "zh"})

	records := s.List()
	require.Len(t, records, 1, "same (sourceText, targetLang) merges into one record")
	assert.Equal(t, "new", records[0].TargetText)

	// A different target language is a different logical translation.
	s.Upsert(&Record{SourceText: "foo", TargetText: "ja-text", TargetLang: "ja"})
	assert.Equal(t, 2, s.Len())
}

func TestStore_MergeKeyIsExact(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "Foo", TargetText: "a", TargetLang: "zh"})
	s.Upsert(&Record{SourceText: "foo", TargetText: "b", TargetLang: "zh"})

	assert.Equal(t, 2, s.Len(), "the merge key is case-sensitive, unlike the cache key")
}

func TestStore_FavoriteIsSticky(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "foo", TargetText: "v1", TargetLang: "zh"})
	id := s.List()[0].ID
	require.True(t, s.ToggleFavorite(id))

	// Re-translating must not silently drop the favorite flag.
	s.Upsert(&Record{SourceText: "foo", TargetText: "v2", TargetLang: "zh"})

	records := s.List()
	require.Len(t, records, 1)
	assert.True(t, records[0].IsFavorite)
	assert.Equal(t, "v2", records[0].TargetText)
	assert.Equal(t, id, records[0].ID, "merged record keeps its identity")
}

func TestStore_MostRecentFirst(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "a", TargetText: "1", TargetLang: "zh"})
	s.Upsert(&Record{SourceText: "b", TargetText: "2", TargetLang: "zh"})
	s.Upsert(&Record{SourceText: "a", TargetText: "3", TargetLang: "zh"})

	records := s.List()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].SourceText, "an upserted record moves to the head")
	assert.Equal(t, "b", records[1].SourceText)
}

func TestStore_TruncatesBeyondCap(t *testing.T) {
	s := NewStore(3, 2, nil, nil)

	for i := 0; i < 5; i++ {
		s.Upsert(&Record{SourceText: fmt.Sprintf("text-%d", i), TargetText: "t", TargetLang: "zh"})
	}

	records := s.List()
	require.Len(t, records, 3)
	assert.Equal(t, "text-4", records[0].SourceText)
	assert.Equal(t, "text-2", records[2].SourceText, "oldest beyond the cap are dropped")
}

func TestStore_ToggleFavoriteUnknownID(t *testing.T) {
	s := NewStore(10, 5, nil, nil)
	assert.False(t, s.ToggleFavorite("nope"), "unknown id is a no-op")
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "foo", TargetText: "bar", TargetLang: "zh"})
	id := s.List()[0].ID

	assert.True(t, s.Remove(id))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Remove(id), "removing twice is a no-op")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	s.Upsert(&Record{SourceText: "foo", TargetText: "bar", TargetLang: "zh"})
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestStore_UpsertSetsTimestamp(t *testing.T) {
	s := NewStore(10, 5, nil, nil)

	before := time.Now()
	s.Upsert(&Record{SourceText: "foo", TargetText: "bar", TargetLang: "zh"})

	ts := s.List()[0].Timestamp
	assert.False(t, ts.Before(before))
}

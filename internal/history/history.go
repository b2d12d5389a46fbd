// ABOUTME: In-memory translation history with upsert, sticky favorites, and capped retention.
// ABOUTME: A smaller cap applies to what gets flushed to durable storage.

package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxRecords caps the live in-memory list.
	DefaultMaxRecords = 200

	// DefaultPersistRecords caps what gets flushed to storage. Smaller than
	// the live cap: the in-memory list may hold more recent items than are
	// durably kept.
	DefaultPersistRecords = 100
)

// Record is one logged translation. Two records are the same logical
// translation iff SourceText and TargetLang match exactly (case and
// whitespace sensitive) — a coarser key than the cache's.
type Record struct {
	ID         string
	SourceText string
	TargetText string
	SourceLang string
	TargetLang string
	Providers  []string
	Timestamp  time.Time
	IsFavorite bool
}

// Store holds the history list, most recent first. Persistence is
// fire-and-forget: mutations return without waiting on the flush.
type Store struct {
	mu         sync.Mutex
	records    []*Record
	maxRecords int
	persistCap int
	db         *DB
	logger     *slog.Logger
}

// NewStore creates a history store. db may be nil for a purely in-memory
// store. Zero caps fall back to the defaults.
func NewStore(maxRecords, persistRecords int, db *DB, logger *slog.Logger) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if persistRecords <= 0 {
		persistRecords = DefaultPersistRecords
	}
	if persistRecords > maxRecords {
		persistRecords = maxRecords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		maxRecords: maxRecords,
		persistCap: persistRecords,
		db:         db,
		logger:     logger.With("component", "history"),
	}
}

// Load replaces the in-memory list with what the database holds. Called
// once at startup, before the store is shared.
func (s *Store) Load() error {
	if s.db == nil {
		return nil
	}
	records, err := s.db.LoadRecent(s.maxRecords)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.logger.Info("history loaded", "records", len(records))
	return nil
}

// Upsert merges a completed translation into the list. A record matching
// (SourceText, TargetLang) is replaced in place with the new content; its
// favorite flag is sticky and survives re-translation. The result is moved
// to the head, and the list is truncated to the retention cap.
func (s *Store) Upsert(rec *Record) {
	s.mu.Lock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	for i, existing := range s.records {
		if existing.SourceText == rec.SourceText && existing.TargetLang == rec.TargetLang {
			rec.IsFavorite = rec.IsFavorite || existing.IsFavorite
			if rec.ID == "" {
				rec.ID = existing.ID
			}
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	s.records = append([]*Record{rec}, s.records...)
	if len(s.records) > s.maxRecords {
		s.records = s.records[:s.maxRecords]
	}
	s.mu.Unlock()

	s.flush()
}

// List returns a copy of the records, most recent first.
func (s *Store) List() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Record, len(s.records))
	for i, rec := range s.records {
		cp := *rec
		out[i] = &cp
	}
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ToggleFavorite flips the favorite flag for the record with the given id.
// Returns false when the id is unknown (a no-op, not an error).
func (s *Store) ToggleFavorite(id string) bool {
	s.mu.Lock()
	found := false
	for _, rec := range s.records {
		if rec.ID == id {
			rec.IsFavorite = !rec.IsFavorite
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.flush()
	}
	return found
}

// Remove deletes the record with the given id. Returns false when the id
// is unknown.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	found := false
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.flush()
	}
	return found
}

// Clear drops every record, in memory and persisted.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()

	s.flush()
}

// Flush synchronously writes the persisted slice of the list. Used at
// shutdown, where fire-and-forget would lose the final state.
func (s *Store) Flush() error {
	if s.db == nil {
		return nil
	}
	return s.db.SaveAll(s.persistSnapshot())
}

// flush writes the persisted slice of the list to the database without
// blocking the caller on the result. Errors are logged, never surfaced.
func (s *Store) flush() {
	if s.db == nil {
		return
	}

	snapshot := s.persistSnapshot()
	go func() {
		if err := s.db.SaveAll(snapshot); err != nil {
			s.logger.Error("history flush failed", "error", err)
		}
	}()
}

// persistSnapshot copies the records subject to the persist cap.
func (s *Store) persistSnapshot() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if n > s.persistCap {
		n = s.persistCap
	}
	snapshot := make([]*Record, n)
	for i := 0; i < n; i++ {
		cp := *s.records[i]
		snapshot[i] = &cp
	}
	return snapshot
}

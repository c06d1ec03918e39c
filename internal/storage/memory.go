package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"farewatch/internal/fraud"
)

// MemoryStore keeps records in process. Used by tests, the demo harness and
// storage.driver=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []memoryRecord
	index   map[string]int // ticket id -> position in records
	seq     uint64
}

type memoryRecord struct {
	Record
	seq uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// InsertTransaction stores rec unless its ticket id is already present.
func (s *MemoryStore) InsertTransaction(ctx context.Context, rec Record) (Record, error) {
	if !rec.Status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[rec.TicketID]; exists {
		return Record{}, ErrDuplicateKey
	}
	s.seq++
	s.index[rec.TicketID] = len(s.records)
	s.records = append(s.records, memoryRecord{Record: rec, seq: s.seq})
	return rec, nil
}

// ListRecentTransactions returns up to limit records, newest timestamp first.
// Ties go to the most recently inserted record.
func (s *MemoryStore) ListRecentTransactions(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	s.mu.RLock()
	sorted := make([]memoryRecord, len(s.records))
	copy(sorted, s.records)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.seq > b.seq
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Record, len(sorted))
	for i, r := range sorted {
		out[i] = r.Record
	}
	return out, nil
}

// ListTransactionsBetween returns records with from <= timestamp <= to, oldest first.
func (s *MemoryStore) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range s.records {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r.Record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// GetTransaction looks up one record.
func (s *MemoryStore) GetTransaction(ctx context.Context, ticketID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[ticketID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[pos].Record, nil
}

// UpdateTransactionStatus overwrites the status of an existing record.
func (s *MemoryStore) UpdateTransactionStatus(ctx context.Context, ticketID string, status fraud.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[ticketID]
	if !ok {
		return ErrNotFound
	}
	s.records[pos].Status = status
	return nil
}

// CountByStatus tallies records per status.
func (s *MemoryStore) CountByStatus(ctx context.Context) (StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := StatusCounts{}
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}

var _ Backend = (*MemoryStore)(nil)

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in a process-local map. Increment and Sweep run
// under the same lock, so a sweep never observes a half-written record and a
// concurrent write either lands in a fresh window or the live one.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = Record{Count: 1, ResetAt: now.Add(window)}
	} else {
		rec.Count++
	}
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored windows, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

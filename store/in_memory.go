package store

import (
	"context"
	"sync"
)

// InMemoryStore is a volatile Store implementation suited for tests and
// ephemeral deployments. It preserves the idempotent-replay contract of the
// durable implementations.
type InMemoryStore struct {
	mu        sync.RWMutex
	summaries []SummaryRecord
	summaryID map[string]struct{}
	knowledge []KnowledgeRecord
	knowID    map[string]struct{}
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		summaryID: make(map[string]struct{}),
		knowID:    make(map[string]struct{}),
	}
}

// AppendSummary implements Store.
func (s *InMemoryStore) AppendSummary(_ context.Context, rec SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.summaryID[rec.SessionID]; dup {
		return nil
	}
	s.summaryID[rec.SessionID] = struct{}{}
	s.summaries = append(s.summaries, rec)
	return nil
}

// Summaries implements Store.
func (s *InMemoryStore) Summaries(_ context.Context, userID string) ([]SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SummaryRecord
	for _, rec := range s.summaries {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendKnowledge implements Store.
func (s *InMemoryStore) AppendKnowledge(_ context.Context, rec KnowledgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.knowID[rec.ID]; dup {
		return nil
	}
	s.knowID[rec.ID] = struct{}{}
	s.knowledge = append(s.knowledge, rec)
	return nil
}

// Knowledge implements Store.
func (s *InMemoryStore) Knowledge(_ context.Context) ([]KnowledgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KnowledgeRecord, len(s.knowledge))
	copy(out, s.knowledge)
	return out, nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }

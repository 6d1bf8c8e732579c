package store

import (
	"context"
	"sync"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

type InMemoryAuditStore struct {
	mu      *sync.Mutex
	entries []commonModels.AuditEntry
}

func InitInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{mu: new(sync.Mutex)}
}

func (s *InMemoryAuditStore) Append(ctx context.Context, entry commonModels.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryAuditStore) Entries() []commonModels.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]commonModels.AuditEntry, len(s.entries))
	copy(copied, s.entries)
	return copied
}

type InMemoryFeedbackStore struct {
	mu       *sync.Mutex
	feedback []commonModels.Feedback
}

func InitInMemoryFeedbackStore() *InMemoryFeedbackStore {
	return &InMemoryFeedbackStore{mu: new(sync.Mutex)}
}

func (s *InMemoryFeedbackStore) Save(ctx context.Context, fb commonModels.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
	return nil
}

package store

import (
	"context"
	"sync"

	"github.com/arlo/mail-triage/internal/core"
)

// MemoryStore is an in-memory implementation of the
// ClassificationStore interface, used for tests and ad-hoc runs.
type MemoryStore struct {
	mu              sync.RWMutex
	classifications map[string]*core.ClassificationResult
	feedback        []*core.UserFeedback
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		classifications: make(map[string]*core.ClassificationResult),
	}
}

// SaveClassification writes one classification row keyed by email
// identifier, overwriting any prior row for the same email.
func (s *MemoryStore) SaveClassification(ctx context.Context, result *core.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *result
	s.classifications[result.EmailID] = &copied
	return nil
}

// GetClassification returns the stored classification for an email.
func (s *MemoryStore) GetClassification(ctx context.Context, emailID string) (*core.ClassificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.classifications[emailID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *result
	return &copied, nil
}

// SaveFeedback appends a feedback record.
func (s *MemoryStore) SaveFeedback(ctx context.Context, feedback *core.UserFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *feedback
	s.feedback = append(s.feedback, &copied)
	return nil
}

// Summary aggregates the feedback log.
func (s *MemoryStore) Summary(ctx context.Context) (*core.FeedbackSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &core.FeedbackSummary{
		TotalClassifications: int64(len(s.classifications)),
		TotalFeedback:        int64(len(s.feedback)),
		ByCorrectedCategory:  make(map[core.Category]int64),
	}
	for _, fb := range s.feedback {
		summary.ByCorrectedCategory[fb.CorrectedCategory]++
	}
	if summary.TotalClassifications > 0 {
		summary.CorrectionRate = float64(summary.TotalFeedback) / float64(summary.TotalClassifications)
	}
	return summary, nil
}

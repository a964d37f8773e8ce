package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedbackService records user corrections and invalidates the cache
// entries they make stale. Feedback is the only mutation path back
// into the cache outside of normal classification traffic; it never
// generates new rules.
type FeedbackService struct {
	store  ClassificationStore
	cache  CacheRepository
	logger *zap.Logger
}

// NewFeedbackService creates a new feedback service. The cache may be
// nil when caching is disabled.
func NewFeedbackService(store ClassificationStore, cache CacheRepository, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{store: store, cache: cache, logger: logger}
}

// Record creates a UserFeedback entry referencing the original
// classification, persists it, and invalidates the cache entries
// keyed by that email's sender and domain so the next classification
// recomputes. Returns ErrNotFound when no classification exists for
// the email.
func (s *FeedbackService) Record(
	ctx context.Context,
	emailID string,
	correctedPrimary Category,
	correctedSecondary []Category,
	comment string,
) (*UserFeedback, error) {
	if !correctedPrimary.Valid() {
		return nil, fmt.Errorf("invalid corrected category %q", correctedPrimary)
	}
	for _, tag := range correctedSecondary {
		if !tag.Valid() {
			return nil, fmt.Errorf("invalid corrected secondary tag %q", tag)
		}
	}

	original, err := s.store.GetClassification(ctx, emailID)
	if err != nil {
		return nil, err
	}

	feedback := &UserFeedback{
		ID:                 uuid.NewString(),
		EmailID:            emailID,
		Sender:             original.Sender,
		SenderDomain:       original.SenderDomain,
		OriginalCategory:   original.Category,
		OriginalSecondary:  original.SecondaryTags,
		OriginalConfidence: original.Confidence,
		OriginalMethod:     original.Method,
		CorrectedCategory:  correctedPrimary,
		CorrectedSecondary: correctedSecondary,
		Comment:            comment,
		CreatedAt:          time.Now(),
	}

	if err := s.store.SaveFeedback(ctx, feedback); err != nil {
		return nil, err
	}

	s.invalidate(ctx, original.Sender)
	s.invalidate(ctx, original.SenderDomain)

	s.logger.Info("Recorded user feedback",
		zap.String("feedback_id", feedback.ID),
		zap.String("email_id", emailID),
		zap.String("original", string(original.Category)),
		zap.String("corrected", string(correctedPrimary)))

	return feedback, nil
}

func (s *FeedbackService) invalidate(ctx context.Context, key string) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate cache entry",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Summary aggregates the persisted feedback log for reporting.
func (s *FeedbackService) Summary(ctx context.Context) (*FeedbackSummary, error) {
	return s.store.Summary(ctx)
}

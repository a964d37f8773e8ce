package core

import (
	"context"
)

// LLMClassifier defines the interface for LLM-backed classification.
type LLMClassifier interface {
	// ClassifyEmail asks the model for a category, secondary tags, a
	// confidence value and a one-sentence rationale. Implementations
	// must never send more than the bounded body excerpt.
	ClassifyEmail(ctx context.Context, email *EmailInput) (*AIClassification, error)
}

// CacheRepository defines the interface for the sender-keyed
// classification cache.
type CacheRepository interface {
	// Lookup returns a live entry for the key, incrementing its hit
	// counter, or ErrCacheMiss when none exists.
	Lookup(ctx context.Context, key string) (*CachedClassification, error)

	// Put creates or overwrites the entry for entry.Key.
	Put(ctx context.Context, entry *CachedClassification) error

	// Invalidate removes the entry for the key immediately. It must be
	// effective before the next Lookup for that key.
	Invalidate(ctx context.Context, key string) error

	// Cleanup purges expired entries.
	Cleanup(ctx context.Context) error
}

// ClassificationStore defines the interface for persisting
// classifications and user feedback.
type ClassificationStore interface {
	// SaveClassification writes one classification row keyed by email
	// identifier.
	SaveClassification(ctx context.Context, result *ClassificationResult) error

	// GetClassification returns the stored classification for an
	// email, or ErrNotFound.
	GetClassification(ctx context.Context, emailID string) (*ClassificationResult, error)

	// SaveFeedback appends a feedback record.
	SaveFeedback(ctx context.Context, feedback *UserFeedback) error

	// Summary aggregates the persisted feedback log.
	Summary(ctx context.Context) (*FeedbackSummary, error)
}

// Runner defines the interface for a classification front-end (batch
// stream, interactive CLI).
type Runner interface {
	// Run processes the configured input until it is exhausted or the
	// context is cancelled.
	Run(ctx context.Context) error

	// Stop releases any resources held by the runner.
	Stop() error
}

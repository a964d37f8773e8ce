package llm

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// RetryPolicy bounds the retry loop around provider calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff is the delay before the first retry; it doubles after
	// every failed attempt.
	Backoff time.Duration
	// Timeout bounds each individual call.
	Timeout time.Duration
	// SessionLimit caps the number of provider calls for the lifetime
	// of this wrapper; zero means unlimited. Once the ceiling is hit
	// callers degrade to rule-only classification.
	SessionLimit int64
}

// Retrying wraps a provider client with a bounded retry loop,
// per-call timeouts and a session call ceiling. Retries only happen
// for transient failures; a malformed response fails immediately.
type Retrying struct {
	inner  core.LLMClassifier
	policy RetryPolicy
	calls  atomic.Int64
	logger *zap.Logger
}

// NewRetrying wraps client with the given policy.
func NewRetrying(client core.LLMClassifier, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{inner: client, policy: policy, logger: logger}
}

// Calls returns the number of provider calls made so far in this
// session.
func (r *Retrying) Calls() int64 {
	return r.calls.Load()
}

// Close releases the wrapped client's resources, if it holds any.
func (r *Retrying) Close() error {
	if closer, ok := r.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// ClassifyEmail calls the wrapped provider, retrying transient
// failures with exponential backoff. Exhausted retries surface as an
// AIError carrying the attempt count so the caller can observe the
// terminal state.
func (r *Retrying) ClassifyEmail(ctx context.Context, email *core.EmailInput) (*core.AIClassification, error) {
	if r.policy.SessionLimit > 0 && r.calls.Load() >= r.policy.SessionLimit {
		return nil, &core.AIError{Op: "session", Attempts: 0, Err: core.ErrSessionLimit}
	}

	backoff := r.policy.Backoff
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		r.calls.Add(1)

		callCtx := ctx
		var cancel context.CancelFunc
		if r.policy.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		}
		result, err := r.inner.ClassifyEmail(callCtx, email)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return nil, &core.AIError{Op: "classify", Attempts: attempt, Err: err}
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		r.logger.Warn("AI call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, &core.AIError{Op: "classify", Attempts: attempt, Err: ctx.Err()}
		}
		backoff *= 2
	}

	return nil, &core.AIError{Op: "classify", Attempts: r.policy.MaxAttempts, Err: lastErr}
}

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a malformed or missing rule or
	// directory document. It is fatal at startup and never recovered
	// mid-run.
	ErrConfiguration = errors.New("configuration error")

	// ErrCache indicates the cache backing store is unreachable or
	// corrupted. Callers treat it as a cache miss.
	ErrCache = errors.New("cache error")

	// ErrCacheMiss is returned by a cache lookup that found no live
	// entry.
	ErrCacheMiss = errors.New("cache miss")

	// ErrPersistence indicates a computed classification could not be
	// durably stored. The in-memory result is still returned.
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound is returned when feedback references an unknown
	// email identifier.
	ErrNotFound = errors.New("classification not found")

	// ErrSessionLimit is returned by the AI adapter once the
	// configured calls-per-session ceiling has been reached.
	ErrSessionLimit = errors.New("ai session call limit reached")
)

// AIError wraps any failure of the AI classification adapter: network
// errors, timeouts, malformed or incomplete model responses. The
// tiering controller recovers from it by falling back to the rule
// result.
type AIError struct {
	Op        string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *AIError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("ai classification %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("ai classification %s failed: %v", e.Op, e.Err)
}

func (e *AIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an AI call error is worth retrying
// (rate limits and transient server errors are; malformed responses
// are not).
func IsRetryable(err error) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}
	return false
}

package rules

import (
	"fmt"
	"strings"

	"github.com/arlo/mail-triage/internal/core"
)

// CategoryRule is one configured pattern rule contributing confidence
// toward its category. Rules are immutable at evaluation time.
type CategoryRule struct {
	ID              string        `mapstructure:"id"`
	Category        core.Category `mapstructure:"category"`
	Enabled         bool          `mapstructure:"enabled"`
	Priority        int           `mapstructure:"priority"`
	ConfidenceBoost float64       `mapstructure:"confidence_boost"`

	// Match predicates. All specified predicates must match for the
	// rule to fire.
	SubjectKeywords []string `mapstructure:"subject_keywords"`
	BodyKeywords    []string `mapstructure:"body_keywords"`
	SenderPatterns  []string `mapstructure:"sender_patterns"`
	HasAttachments  *bool    `mapstructure:"has_attachments"`
	HasUnsubscribe  *bool    `mapstructure:"has_unsubscribe"`
}

// Validate checks the rule is well-formed.
func (r *CategoryRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
	}
	if r.ConfidenceBoost < 0 || r.ConfidenceBoost > 1 {
		return fmt.Errorf("rule %s: confidence_boost %v outside [0,1]", r.ID, r.ConfidenceBoost)
	}
	return nil
}

// Matches reports whether every specified predicate matches the email.
// Keyword containment is case-insensitive substring match; sender
// patterns support a single wildcard token; boolean conditions must
// match exactly when specified.
func (r *CategoryRule) Matches(email *core.EmailInput) bool {
	if len(r.SubjectKeywords) > 0 && !matchKeywords(email.Subject, r.SubjectKeywords) {
		return false
	}
	if len(r.BodyKeywords) > 0 && !matchKeywords(email.BodyExcerpt, r.BodyKeywords) {
		return false
	}
	if len(r.SenderPatterns) > 0 {
		matched := false
		for _, pattern := range r.SenderPatterns {
			if MatchPattern(pattern, email.Sender) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if r.HasAttachments != nil && *r.HasAttachments != email.HasAttachments {
		return false
	}
	if r.HasUnsubscribe != nil && *r.HasUnsubscribe != email.HasUnsubscribe {
		return false
	}
	return true
}

// matchKeywords reports whether any keyword is contained in the text,
// case-insensitively. An empty keyword list matches nothing.
func matchKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MatchPattern matches a sender address against a pattern containing
// at most one `*` wildcard. Matching is case-insensitive; without a
// wildcard the match is exact.
func MatchPattern(pattern, addr string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	addr = strings.ToLower(strings.TrimSpace(addr))
	if pattern == "" {
		return false
	}
	star := strings.Index(pattern, "*")
	if star < 0 {
		return pattern == addr
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(addr) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(addr, prefix) && strings.HasSuffix(addr, suffix)
}

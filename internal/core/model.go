package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is a classification bucket for an email.
type Category string

// Classification categories, ordered from most to least important.
const (
	CategoryImportant     Category = "important"
	CategorySolicitation  Category = "solicitation"
	CategoryNewsletter    Category = "newsletter"
	CategoryTransactional Category = "transactional"
	CategoryNormal        Category = "normal"
)

// Categories lists every valid category in rank order. Rank order is
// the final tie-break when two categories score equally.
var Categories = []Category{
	CategoryImportant,
	CategorySolicitation,
	CategoryNewsletter,
	CategoryTransactional,
	CategoryNormal,
}

// Rank returns the position of the category in the canonical order.
// Unknown categories rank last.
func (c Category) Rank() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// Valid reports whether the category is one of the known buckets.
func (c Category) Valid() bool {
	return c.Rank() < len(Categories)
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Method identifies the provenance of a classification decision.
type Method string

const (
	MethodVIP      Method = "vip"
	MethodBlocked  Method = "blocked"
	MethodRule     Method = "rule"
	MethodAI       Method = "ai"
	MethodHybrid   Method = "hybrid"
	MethodFallback Method = "fallback"
)

// EmailInput is the metadata handed to the classifier for a single
// message. The body excerpt is bounded upstream; full message bodies
// never cross this boundary.
type EmailInput struct {
	ID              string    `json:"id"`
	Sender          string    `json:"sender"`
	SenderName      string    `json:"sender_name,omitempty"`
	SenderDomain    string    `json:"sender_domain,omitempty"`
	Subject         string    `json:"subject"`
	BodyExcerpt     string    `json:"body_excerpt"`
	ReceivedAt      time.Time `json:"received_at"`
	HasAttachments  bool      `json:"has_attachments"`
	AttachmentTypes []string  `json:"attachment_types,omitempty"`
	Important       bool      `json:"important"`
	IsRead          bool      `json:"is_read"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	FromUser        bool      `json:"from_user"`
	UserHasReplied  bool      `json:"user_has_replied"`
	HasUnsubscribe  bool      `json:"has_unsubscribe"`
	ReplyTo         string    `json:"reply_to,omitempty"`
}

// Domain returns the sender domain, deriving it from the address when
// the upstream producer did not fill it in.
func (e *EmailInput) Domain() string {
	if e.SenderDomain != "" {
		return strings.ToLower(e.SenderDomain)
	}
	parts := strings.Split(e.Sender, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// AIClassification is the validated output of an LLM classification
// call.
type AIClassification struct {
	Category      Category
	SecondaryTags []Category
	Confidence    float64
	Rationale     string
	ModelUsed     string
	ProcessingID  string
}

// ClassificationResult is the final decision for one email.
type ClassificationResult struct {
	EmailID       string     `json:"email_id"`
	Sender        string     `json:"sender"`
	SenderDomain  string     `json:"sender_domain"`
	Category      Category   `json:"category"`
	SecondaryTags []Category `json:"secondary_tags,omitempty"`
	Confidence    float64    `json:"confidence"`
	Method        Method     `json:"method"`

	// Per-branch components kept for auditability.
	MatchedRuleID  string  `json:"matched_rule_id,omitempty"`
	RuleConfidence float64 `json:"rule_confidence"`
	AIConfidence   float64 `json:"ai_confidence"`
	Rationale      string  `json:"rationale,omitempty"`
	Note           string  `json:"note,omitempty"`

	// FromCacheKey is set when the result was served from the cache.
	FromCacheKey string `json:"from_cache_key,omitempty"`

	// NeverAutoSuppress and DirectoryNote are carried from a matching
	// sender directory entry so downstream actuation can honor them.
	NeverAutoSuppress bool   `json:"never_auto_suppress,omitempty"`
	DirectoryNote     string `json:"directory_note,omitempty"`

	ThreadBoosted bool          `json:"thread_boosted,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CacheKeyType distinguishes address-level from domain-level cache
// entries.
type CacheKeyType string

const (
	CacheKeyAddress CacheKeyType = "address"
	CacheKeyDomain  CacheKeyType = "domain"
)

// CachedClassification is a remembered outcome for a sender or domain.
type CachedClassification struct {
	Key        string
	KeyType    CacheKeyType
	Category   Category
	Confidence float64
	Method     Method
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Hits       int64
	LastUsed   time.Time
}

// Expired reports whether the entry is past its TTL.
func (c *CachedClassification) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// UserFeedback records a user correction of a classification.
// Append-only; never mutated after creation.
type UserFeedback struct {
	ID                 string     `json:"id"`
	EmailID            string     `json:"email_id"`
	Sender             string     `json:"sender"`
	SenderDomain       string     `json:"sender_domain"`
	OriginalCategory   Category   `json:"original_category"`
	OriginalSecondary  []Category `json:"original_secondary,omitempty"`
	OriginalConfidence float64    `json:"original_confidence"`
	OriginalMethod     Method     `json:"original_method"`
	CorrectedCategory  Category   `json:"corrected_category"`
	CorrectedSecondary []Category `json:"corrected_secondary,omitempty"`
	Comment            string     `json:"comment,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// FeedbackSummary aggregates the persisted feedback log for reporting.
type FeedbackSummary struct {
	TotalClassifications int64              `json:"total_classifications"`
	TotalFeedback        int64              `json:"total_feedback"`
	CorrectionRate       float64            `json:"correction_rate"`
	ByCorrectedCategory  map[Category]int64 `json:"by_corrected_category"`
}

// Package llm holds the provider-independent pieces of the AI
// classification adapter: prompt construction, response parsing and
// validation, and the bounded retry wrapper.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arlo/mail-triage/internal/core"
)

// SystemPrompt is the instruction sent alongside every classification
// request.
const SystemPrompt = "You are an email triage assistant. Respond only with JSON."

const promptFormat = `Classify the following email into exactly one primary category from:
important, solicitation, newsletter, transactional, normal.

Respond with a JSON object containing:
- primary_category: string (one of the categories above, required)
- secondary_tags: array of strings (optional additional categories)
- confidence: number between 0 and 1
- rationale: string (one sentence explaining the classification)

Email metadata:
From: %s (%s)
Domain: %s
Subject: %s
Has attachments: %t
Has unsubscribe link: %t
Marked important by sender: %t
User has replied in this thread: %t

Body excerpt:
%s

Respond only with the JSON object and nothing else.`

// BuildPrompt renders the bounded classification prompt for an email.
// Only the body excerpt is included, never full content.
func BuildPrompt(email *core.EmailInput) string {
	return fmt.Sprintf(promptFormat,
		email.Sender,
		email.SenderName,
		email.Domain(),
		email.Subject,
		email.HasAttachments,
		email.HasUnsubscribe,
		email.Important,
		email.UserHasReplied,
		email.BodyExcerpt,
	)
}

// classificationResponse is the structured response expected from the
// model.
type classificationResponse struct {
	PrimaryCategory string   `json:"primary_category"`
	SecondaryTags   []string `json:"secondary_tags"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale"`
}

// ParseResponse parses and validates a model response. A response
// that is not well-formed JSON or omits the primary category is an
// error; the adapter never guesses a category.
func ParseResponse(text, modelUsed, processingID string) (*core.AIClassification, error) {
	var resp classificationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		// Models occasionally wrap the object in prose or fences; try
		// the outermost braces before giving up.
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("response contains no JSON object: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response as JSON: %w", err)
		}
	}

	if resp.PrimaryCategory == "" {
		return nil, fmt.Errorf("response omits primary_category")
	}
	category, err := core.ParseCategory(resp.PrimaryCategory)
	if err != nil {
		return nil, fmt.Errorf("invalid primary category: %w", err)
	}

	var secondary []core.Category
	for _, tag := range resp.SecondaryTags {
		c, err := core.ParseCategory(tag)
		if err != nil || c == category {
			// Unknown tags are dropped, not fatal.
			continue
		}
		secondary = append(secondary, c)
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &core.AIClassification{
		Category:      category,
		SecondaryTags: secondary,
		Confidence:    confidence,
		Rationale:     resp.Rationale,
		ModelUsed:     modelUsed,
		ProcessingID:  processingID,
	}, nil
}

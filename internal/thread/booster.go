// Package thread adjusts classification confidence based on the
// user's participation in the message's conversation.
package thread

import (
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// DefaultReplyBoost is the confidence increment applied when the user
// has replied within the conversation.
const DefaultReplyBoost = 0.2

// Booster applies thread participation signals to a tentative
// classification. It only ever moves a result toward importance and
// never demotes a category.
type Booster struct {
	replyBoost float64
	logger     *zap.Logger
}

// NewBooster creates a booster with the configured reply increment.
func NewBooster(replyBoost float64, logger *zap.Logger) *Booster {
	if replyBoost < 0 {
		replyBoost = 0
	}
	return &Booster{replyBoost: replyBoost, logger: logger}
}

// Apply adjusts the result in place based on the email's thread
// signals. It is idempotent: a result that was already boosted is
// left untouched.
func (b *Booster) Apply(email *core.EmailInput, result *core.ClassificationResult) {
	if result.ThreadBoosted {
		return
	}

	if email.FromUser {
		// The user originated this conversation; it is important to
		// them regardless of other signals.
		if result.Category != core.CategoryImportant {
			result.SecondaryTags = prepend(result.Category, result.SecondaryTags)
			result.Category = core.CategoryImportant
		}
		if result.Confidence < 1.0 {
			result.Confidence = 1.0
		}
		result.ThreadBoosted = true
		if b.logger != nil {
			b.logger.Debug("Thread originator forced important",
				zap.String("email_id", email.ID),
				zap.String("conversation_id", email.ConversationID))
		}
		return
	}

	if email.UserHasReplied && result.Category == core.CategoryImportant {
		boosted := result.Confidence + b.replyBoost
		if boosted > 1.0 {
			boosted = 1.0
		}
		if boosted > result.Confidence {
			result.Confidence = boosted
			result.ThreadBoosted = true
			if b.logger != nil {
				b.logger.Debug("Thread reply boosted confidence",
					zap.String("email_id", email.ID),
					zap.Float64("confidence", result.Confidence))
			}
		}
	}
}

func prepend(c core.Category, tags []core.Category) []core.Category {
	for _, t := range tags {
		if t == c {
			return tags
		}
	}
	return append([]core.Category{c}, tags...)
}

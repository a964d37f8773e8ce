package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

func TestApplyReplyBoostOnImportant(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.7,
	}
	b.Apply(&core.EmailInput{UserHasReplied: true}, result)

	assert.Equal(t, core.CategoryImportant, result.Category)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.True(t, result.ThreadBoosted)
}

func TestApplyReplyBoostCappedAtOne(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.95,
	}
	b.Apply(&core.EmailInput{UserHasReplied: true}, result)

	assert.Equal(t, 1.0, result.Confidence)
	assert.True(t, result.ThreadBoosted)
}

func TestApplyReplyBoostOnlyForImportant(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryNewsletter,
		Confidence: 0.7,
	}
	b.Apply(&core.EmailInput{UserHasReplied: true}, result)

	assert.Equal(t, core.CategoryNewsletter, result.Category)
	assert.Equal(t, 0.7, result.Confidence)
	assert.False(t, result.ThreadBoosted)
}

func TestApplyIdempotent(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())
	email := &core.EmailInput{UserHasReplied: true}

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.6,
	}
	b.Apply(email, result)
	after := result.Confidence
	b.Apply(email, result)
	b.Apply(email, result)

	assert.Equal(t, after, result.Confidence)
}

func TestApplyNeverDecreasesConfidence(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	for _, conf := range []float64{0, 0.3, 0.5, 0.8, 1.0} {
		result := &core.ClassificationResult{
			Category:   core.CategoryImportant,
			Confidence: conf,
		}
		b.Apply(&core.EmailInput{UserHasReplied: true}, result)
		assert.GreaterOrEqual(t, result.Confidence, conf)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	}
}

func TestApplyFromUserForcesImportant(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryNewsletter,
		Confidence: 0.4,
	}
	b.Apply(&core.EmailInput{FromUser: true, ConversationID: "thread-1"}, result)

	assert.Equal(t, core.CategoryImportant, result.Category)
	assert.Equal(t, 1.0, result.Confidence)
	assert.True(t, result.ThreadBoosted)
	assert.Contains(t, result.SecondaryTags, core.CategoryNewsletter)
}

func TestApplyFromUserAlreadyImportant(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.8,
	}
	b.Apply(&core.EmailInput{FromUser: true}, result)

	assert.Equal(t, core.CategoryImportant, result.Category)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, result.SecondaryTags)
}

func TestApplyNoSignals(t *testing.T) {
	b := NewBooster(0.2, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.7,
	}
	b.Apply(&core.EmailInput{}, result)

	assert.Equal(t, 0.7, result.Confidence)
	assert.False(t, result.ThreadBoosted)
}

func TestNegativeBoostClampedToZero(t *testing.T) {
	b := NewBooster(-1, zap.NewNop())

	result := &core.ClassificationResult{
		Category:   core.CategoryImportant,
		Confidence: 0.7,
	}
	b.Apply(&core.EmailInput{UserHasReplied: true}, result)

	assert.Equal(t, 0.7, result.Confidence)
}

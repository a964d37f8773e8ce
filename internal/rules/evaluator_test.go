package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlo/mail-triage/internal/core"
)

func boolPtr(b bool) *bool {
	return &b
}

func promoRules() []CategoryRule {
	return []CategoryRule{
		{
			ID:              "promo-subject",
			Category:        core.CategorySolicitation,
			Enabled:         true,
			Priority:        100,
			ConfidenceBoost: 0.5,
			SubjectKeywords: []string{"limited time offer", "% off"},
		},
		{
			ID:              "promo-unsubscribe",
			Category:        core.CategorySolicitation,
			Enabled:         true,
			Priority:        90,
			ConfidenceBoost: 0.4,
			HasUnsubscribe:  boolPtr(true),
		},
		{
			ID:              "newsletter-digest",
			Category:        core.CategoryNewsletter,
			Enabled:         true,
			Priority:        80,
			ConfidenceBoost: 0.6,
			SubjectKeywords: []string{"newsletter"},
		},
		{
			ID:              "disabled-rule",
			Category:        core.CategoryImportant,
			Enabled:         false,
			Priority:        200,
			ConfidenceBoost: 1.0,
			SubjectKeywords: []string{"limited time offer"},
		},
	}
}

func TestEvaluatorSkipsDisabledRules(t *testing.T) {
	e := NewEvaluator(promoRules())
	assert.Equal(t, 3, e.Len())
}

func TestEvaluateAccumulatesBoostsForCategory(t *testing.T) {
	e := NewEvaluator(promoRules())

	email := &core.EmailInput{
		ID:             "msg-1",
		Sender:         "marketing@deals-unlimited.com",
		Subject:        "Limited Time Offer - 50% Off Everything!",
		BodyExcerpt:    "Shop now before the sale ends.",
		HasUnsubscribe: true,
	}

	res := e.Evaluate(email)
	assert.Equal(t, core.CategorySolicitation, res.Category)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "promo-subject", res.MatchedRuleID)
	assert.Empty(t, res.Secondary)
}

func TestEvaluateCapsConfidenceAtOne(t *testing.T) {
	ruleset := promoRules()
	ruleset = append(ruleset, CategoryRule{
		ID:              "promo-body",
		Category:        core.CategorySolicitation,
		Enabled:         true,
		Priority:        85,
		ConfidenceBoost: 0.8,
		BodyKeywords:    []string{"sale"},
	})
	e := NewEvaluator(ruleset)

	email := &core.EmailInput{
		Subject:        "Limited Time Offer",
		BodyExcerpt:    "huge sale",
		HasUnsubscribe: true,
	}

	res := e.Evaluate(email)
	assert.Equal(t, core.CategorySolicitation, res.Category)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestEvaluateReturnsNormalWhenNothingMatches(t *testing.T) {
	e := NewEvaluator(promoRules())

	res := e.Evaluate(&core.EmailInput{
		Sender:  "colleague@company.com",
		Subject: "lunch?",
	})
	assert.Equal(t, core.CategoryNormal, res.Category)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.MatchedRuleID)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEvaluator(promoRules())
	email := &core.EmailInput{
		Subject:        "Your weekly newsletter: limited time offer inside",
		HasUnsubscribe: true,
	}

	first := e.Evaluate(email)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, e.Evaluate(email))
	}
}

func TestEvaluateTieBrokenByRulePriority(t *testing.T) {
	e := NewEvaluator([]CategoryRule{
		{
			ID:              "low-priority-newsletter",
			Category:        core.CategoryNewsletter,
			Enabled:         true,
			Priority:        10,
			ConfidenceBoost: 0.5,
			SubjectKeywords: []string{"update"},
		},
		{
			ID:              "high-priority-transactional",
			Category:        core.CategoryTransactional,
			Enabled:         true,
			Priority:        50,
			ConfidenceBoost: 0.5,
			SubjectKeywords: []string{"update"},
		},
	})

	res := e.Evaluate(&core.EmailInput{Subject: "account update"})
	assert.Equal(t, core.CategoryTransactional, res.Category)
	assert.Equal(t, "high-priority-transactional", res.MatchedRuleID)
}

func TestEvaluateTieBrokenByCategoryRank(t *testing.T) {
	// Equal score, equal priority: the higher-ranked category wins.
	e := NewEvaluator([]CategoryRule{
		{
			ID:              "transactional",
			Category:        core.CategoryTransactional,
			Enabled:         true,
			Priority:        10,
			ConfidenceBoost: 0.5,
			SubjectKeywords: []string{"update"},
		},
		{
			ID:              "solicitation",
			Category:        core.CategorySolicitation,
			Enabled:         true,
			Priority:        10,
			ConfidenceBoost: 0.5,
			SubjectKeywords: []string{"update"},
		},
	})

	res := e.Evaluate(&core.EmailInput{Subject: "update"})
	assert.Equal(t, core.CategorySolicitation, res.Category)
}

func TestEvaluateSecondaryCategoriesOrderedByScore(t *testing.T) {
	e := NewEvaluator(promoRules())

	email := &core.EmailInput{
		Subject:        "Newsletter: limited time offer",
		HasUnsubscribe: true,
	}

	res := e.Evaluate(email)
	require.Equal(t, core.CategorySolicitation, res.Category)
	require.Len(t, res.Secondary, 1)
	assert.Equal(t, core.CategoryNewsletter, res.Secondary[0])
}

func TestRuleMatchesAllPredicatesRequired(t *testing.T) {
	rule := CategoryRule{
		ID:              "receipts",
		Category:        core.CategoryTransactional,
		Enabled:         true,
		ConfidenceBoost: 0.8,
		SubjectKeywords: []string{"receipt"},
		SenderPatterns:  []string{"no-reply@*"},
		HasAttachments:  boolPtr(false),
	}

	tests := []struct {
		name  string
		email core.EmailInput
		want  bool
	}{
		{
			name: "all predicates match",
			email: core.EmailInput{
				Sender:  "no-reply@shop.example.com",
				Subject: "Your receipt from Shop",
			},
			want: true,
		},
		{
			name: "subject keyword missing",
			email: core.EmailInput{
				Sender:  "no-reply@shop.example.com",
				Subject: "Your order",
			},
			want: false,
		},
		{
			name: "sender pattern mismatch",
			email: core.EmailInput{
				Sender:  "support@shop.example.com",
				Subject: "Your receipt",
			},
			want: false,
		},
		{
			name: "attachment condition mismatch",
			email: core.EmailInput{
				Sender:         "no-reply@shop.example.com",
				Subject:        "Your receipt",
				HasAttachments: true,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Matches(&tt.email))
		})
	}
}

func TestMatchKeywordsCaseInsensitive(t *testing.T) {
	rule := CategoryRule{
		ID:              "promo",
		Category:        core.CategorySolicitation,
		Enabled:         true,
		ConfidenceBoost: 0.5,
		SubjectKeywords: []string{"Limited Time Offer"},
	}
	assert.True(t, rule.Matches(&core.EmailInput{Subject: "LIMITED TIME OFFER - act now"}))
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		addr    string
		want    bool
	}{
		{"boss@company.com", "boss@company.com", true},
		{"boss@company.com", "BOSS@Company.com", true},
		{"boss@company.com", "boss@company.org", false},
		{"*@company.com", "anyone@company.com", true},
		{"*@company.com", "anyone@evil.com", false},
		{"no-reply@*", "no-reply@shop.example.com", true},
		{"no-reply@*", "reply@shop.example.com", false},
		{"*", "anything@anywhere", true},
		{"", "anything@anywhere", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.addr),
			"pattern %q against %q", tt.pattern, tt.addr)
	}
}

func TestRuleValidate(t *testing.T) {
	valid := CategoryRule{ID: "r1", Category: core.CategoryNormal, ConfidenceBoost: 0.5}
	assert.NoError(t, valid.Validate())

	noID := CategoryRule{Category: core.CategoryNormal, ConfidenceBoost: 0.5}
	assert.Error(t, noID.Validate())

	badCategory := CategoryRule{ID: "r2", Category: "junk", ConfidenceBoost: 0.5}
	assert.Error(t, badCategory.Validate())

	badBoost := CategoryRule{ID: "r3", Category: core.CategoryNormal, ConfidenceBoost: 1.5}
	assert.Error(t, badBoost.Validate())
}

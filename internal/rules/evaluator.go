package rules

import (
	"sort"

	"github.com/arlo/mail-triage/internal/core"
)

// Evaluator applies the configured rule set to an email. Evaluation
// is a pure function of (email, ruleset): no external calls, no
// hidden state, so repeated invocations are bit-identical.
type Evaluator struct {
	rules []CategoryRule
}

// NewEvaluator builds an evaluator over the enabled rules, ordered by
// descending priority.
func NewEvaluator(ruleset []CategoryRule) *Evaluator {
	enabled := make([]CategoryRule, 0, len(ruleset))
	for _, r := range ruleset {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority > enabled[j].Priority
	})
	return &Evaluator{rules: enabled}
}

// Len returns the number of enabled rules.
func (e *Evaluator) Len() int {
	return len(e.rules)
}

// Evaluate sums the confidence boost of every matching rule per
// category, capped at 1.0, and returns the winning category. Ties are
// broken by the priority of the best matching rule, then by category
// rank order. Secondary lists the other categories that accumulated
// score, highest first.
func (e *Evaluator) Evaluate(email *core.EmailInput) core.RuleResult {
	scores := make(map[core.Category]float64)
	topPriority := make(map[core.Category]int)
	topRule := make(map[core.Category]string)

	for _, r := range e.rules {
		if !r.Matches(email) {
			continue
		}
		scores[r.Category] += r.ConfidenceBoost
		if scores[r.Category] > 1.0 {
			scores[r.Category] = 1.0
		}
		// Rules are priority-ordered, so the first match per category
		// is its best rule.
		if _, seen := topRule[r.Category]; !seen {
			topRule[r.Category] = r.ID
			topPriority[r.Category] = r.Priority
		}
	}

	if len(scores) == 0 {
		return core.RuleResult{Category: core.CategoryNormal, Confidence: 0}
	}

	var winner core.Category
	best := -1.0
	for _, c := range core.Categories {
		score, ok := scores[c]
		if !ok {
			continue
		}
		switch {
		case score > best:
			winner, best = c, score
		case score == best && topPriority[c] > topPriority[winner]:
			winner = c
		}
	}

	var secondary []core.Category
	for _, c := range core.Categories {
		if c != winner && scores[c] > 0 {
			secondary = append(secondary, c)
		}
	}
	sort.SliceStable(secondary, func(i, j int) bool {
		return scores[secondary[i]] > scores[secondary[j]]
	})

	return core.RuleResult{
		Category:      winner,
		Confidence:    best,
		MatchedRuleID: topRule[winner],
		Secondary:     secondary,
	}
}

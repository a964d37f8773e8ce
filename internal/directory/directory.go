// Package directory resolves senders against the VIP, trusted,
// monitored and blocked lists. It is the highest-priority,
// short-circuiting check in the classification pipeline.
package directory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/rules"
)

// Tier is the priority tier of a directory entry.
type Tier string

const (
	TierVIP       Tier = "vip"
	TierTrusted   Tier = "trusted"
	TierMonitored Tier = "monitored"
	TierBlocked   Tier = "blocked"
)

// MatchType describes how an entry pattern is matched.
type MatchType string

const (
	MatchAddress  MatchType = "address"
	MatchDomain   MatchType = "domain"
	MatchWildcard MatchType = "wildcard"
)

// Entry is one sender directory record. Read-only during
// classification.
type Entry struct {
	Pattern           string        `mapstructure:"pattern"`
	Tier              Tier          `mapstructure:"tier"`
	OverrideCategory  core.Category `mapstructure:"category"`
	NeverAutoSuppress bool          `mapstructure:"never_auto_suppress"`
	Note              string        `mapstructure:"note"`
}

// Type derives how the entry's pattern is matched: a wildcard token
// makes it a wildcard pattern, an @ makes it an exact address, and
// anything else is a domain.
func (e *Entry) Type() MatchType {
	switch {
	case strings.Contains(e.Pattern, "*"):
		return MatchWildcard
	case strings.Contains(e.Pattern, "@"):
		return MatchAddress
	default:
		return MatchDomain
	}
}

// Validate checks the entry is well-formed.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Pattern) == "" {
		return fmt.Errorf("directory entry has no pattern")
	}
	switch e.Tier {
	case TierVIP, TierTrusted, TierMonitored, TierBlocked:
	default:
		return fmt.Errorf("directory entry %s: unknown tier %q", e.Pattern, e.Tier)
	}
	if e.OverrideCategory != "" && !e.OverrideCategory.Valid() {
		return fmt.Errorf("directory entry %s: unknown category %q", e.Pattern, e.OverrideCategory)
	}
	return nil
}

// specificity orders match types from most to least specific.
func specificity(t MatchType) int {
	switch t {
	case MatchAddress:
		return 3
	case MatchDomain:
		return 2
	default:
		return 1
	}
}

// tierWeight orders allow tiers so that at equal specificity a VIP
// entry beats a trusted one, which beats a monitored one.
func tierWeight(t Tier) int {
	switch t {
	case TierVIP:
		return 3
	case TierTrusted:
		return 2
	default:
		return 1
	}
}

// Directory is the loaded sender directory. Lookups are pure and have
// no side effects.
type Directory struct {
	entries []Entry
	logger  *zap.Logger
}

// New builds a directory from the configured entries. Patterns are
// normalized to lowercase.
func New(entries []Entry, logger *zap.Logger) *Directory {
	normalized := make([]Entry, len(entries))
	for i, e := range entries {
		e.Pattern = strings.ToLower(strings.TrimSpace(e.Pattern))
		normalized[i] = e
	}
	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized sender directory", zap.Int("entries", len(normalized)))
	}
	return &Directory{entries: normalized, logger: logger}
}

// Len returns the number of directory entries.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Match returns at most one entry for the sender, preferring exact
// address matches over domain matches over wildcard patterns. A
// blocked entry wins over a VIP or trusted entry at equal or greater
// specificity, so a spoofed exception can not be silently VIP'd.
func (d *Directory) Match(sender, domain string) *Entry {
	sender = strings.ToLower(strings.TrimSpace(sender))
	domain = strings.ToLower(strings.TrimSpace(domain))

	var bestBlocked, bestAllow *Entry
	for i := range d.entries {
		e := &d.entries[i]
		if !d.entryMatches(e, sender, domain) {
			continue
		}
		if e.Tier == TierBlocked {
			if bestBlocked == nil || specificity(e.Type()) > specificity(bestBlocked.Type()) {
				bestBlocked = e
			}
			continue
		}
		if bestAllow == nil ||
			specificity(e.Type()) > specificity(bestAllow.Type()) ||
			(specificity(e.Type()) == specificity(bestAllow.Type()) && tierWeight(e.Tier) > tierWeight(bestAllow.Tier)) {
			bestAllow = e
		}
	}

	if bestBlocked != nil {
		if bestAllow == nil || specificity(bestBlocked.Type()) >= specificity(bestAllow.Type()) {
			return bestBlocked
		}
	}
	if bestAllow != nil {
		if d.logger != nil {
			d.logger.Debug("Sender directory match",
				zap.String("sender", sender),
				zap.String("pattern", bestAllow.Pattern),
				zap.String("tier", string(bestAllow.Tier)))
		}
	}
	return bestAllow
}

// Resolve adapts Match to the shape the tiering controller consumes.
func (d *Directory) Resolve(sender, domain string) *core.DirectoryMatch {
	e := d.Match(sender, domain)
	if e == nil {
		return nil
	}
	return &core.DirectoryMatch{
		Tier:              string(e.Tier),
		OverrideCategory:  e.OverrideCategory,
		NeverAutoSuppress: e.NeverAutoSuppress,
		Note:              e.Note,
	}
}

func (d *Directory) entryMatches(e *Entry, sender, domain string) bool {
	switch e.Type() {
	case MatchAddress:
		return e.Pattern == sender
	case MatchDomain:
		return e.Pattern == domain
	default:
		return rules.MatchPattern(e.Pattern, sender)
	}
}

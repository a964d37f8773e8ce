package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/adapters/cache"
	"github.com/arlo/mail-triage/internal/adapters/store"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/thread"
)

type fakeRules struct {
	res   core.RuleResult
	panic bool
}

func (f *fakeRules) Evaluate(email *core.EmailInput) core.RuleResult {
	if f.panic {
		panic("rules exploded")
	}
	return f.res
}

type fakeDirectory struct {
	matches map[string]*core.DirectoryMatch
}

func (f *fakeDirectory) Resolve(sender, domain string) *core.DirectoryMatch {
	if m, ok := f.matches[sender]; ok {
		return m
	}
	return f.matches[domain]
}

type fakeAI struct {
	calls int
	res   *core.AIClassification
	err   error
}

func (f *fakeAI) ClassifyEmail(ctx context.Context, email *core.EmailInput) (*core.AIClassification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type failingCache struct{}

func (failingCache) Lookup(ctx context.Context, key string) (*core.CachedClassification, error) {
	return nil, fmt.Errorf("%w: backend down", core.ErrCache)
}
func (failingCache) Put(ctx context.Context, entry *core.CachedClassification) error {
	return fmt.Errorf("%w: backend down", core.ErrCache)
}
func (failingCache) Invalidate(ctx context.Context, key string) error {
	return fmt.Errorf("%w: backend down", core.ErrCache)
}
func (failingCache) Cleanup(ctx context.Context) error { return nil }

type serviceParts struct {
	dir   *fakeDirectory
	rules *fakeRules
	ai    *fakeAI
	cache core.CacheRepository
	store *store.MemoryStore
}

func defaultOptions() core.Options {
	return core.Options{
		HighConfidence:   0.9,
		LowConfidence:    0.5,
		MaxSecondaryTags: 3,
		AIEnabled:        true,
		CacheEnabled:     true,
		CacheTTL:         time.Hour,
		DomainKeys:       true,
		Workers:          2,
	}
}

func newTestService(t *testing.T, opts core.Options) (*core.ClassifierService, *serviceParts) {
	t.Helper()

	parts := &serviceParts{
		dir:   &fakeDirectory{matches: map[string]*core.DirectoryMatch{}},
		rules: &fakeRules{res: core.RuleResult{Category: core.CategoryNormal}},
		ai:    &fakeAI{},
		cache: cache.NewMemoryCache(zap.NewNop(), 0),
		store: store.NewMemoryStore(),
	}
	svc := core.NewClassifierService(
		parts.dir,
		parts.rules,
		parts.ai,
		parts.cache,
		parts.store,
		thread.NewBooster(0.2, zap.NewNop()),
		nil,
		zap.NewNop(),
		opts,
	)
	return svc, parts
}

func email(id, sender string) core.EmailInput {
	return core.EmailInput{
		ID:          id,
		Sender:      sender,
		Subject:     "hello",
		BodyExcerpt: "some text",
		ReceivedAt:  time.Now(),
	}
}

func TestClassifyVIPShortCircuits(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.dir.matches["boss@company.com"] = &core.DirectoryMatch{Tier: core.TierVIP, Note: "direct manager"}
	// Solicitation-like content must not matter for a VIP sender.
	parts.rules.res = core.RuleResult{Category: core.CategorySolicitation, Confidence: 0.95}
	parts.ai.res = &core.AIClassification{Category: core.CategoryNormal, Confidence: 0.9}

	res := svc.Classify(context.Background(), email("msg-1", "boss@company.com"))

	assert.Equal(t, core.CategoryImportant, res.Category)
	assert.Equal(t, core.MethodVIP, res.Method)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "direct manager", res.DirectoryNote)
	assert.Zero(t, parts.ai.calls)

	// Directory decisions are persisted but never cached.
	stored, err := parts.store.GetClassification(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, core.MethodVIP, stored.Method)
	_, err = parts.cache.Lookup(context.Background(), "boss@company.com")
	assert.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestClassifyVIPCategoryOverride(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.dir.matches["alerts@pager.example.com"] = &core.DirectoryMatch{
		Tier:              core.TierVIP,
		OverrideCategory:  core.CategoryTransactional,
		NeverAutoSuppress: true,
	}

	res := svc.Classify(context.Background(), email("msg-2", "alerts@pager.example.com"))

	assert.Equal(t, core.CategoryTransactional, res.Category)
	assert.Equal(t, core.MethodVIP, res.Method)
	assert.True(t, res.NeverAutoSuppress)
}

func TestClassifyBlockedIgnoresOverride(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.dir.matches["spam@bulk.example.com"] = &core.DirectoryMatch{
		Tier:             core.TierBlocked,
		OverrideCategory: core.CategoryImportant,
	}

	res := svc.Classify(context.Background(), email("msg-3", "spam@bulk.example.com"))

	assert.Equal(t, core.CategorySolicitation, res.Category)
	assert.Equal(t, core.MethodBlocked, res.Method)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Zero(t, parts.ai.calls)
}

func TestClassifyMonitoredContinuesPipeline(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.dir.matches["rep@partner.example.com"] = &core.DirectoryMatch{
		Tier:              core.TierMonitored,
		NeverAutoSuppress: true,
		Note:              "contract pending",
	}
	parts.rules.res = core.RuleResult{
		Category:      core.CategoryNewsletter,
		Confidence:    0.95,
		MatchedRuleID: "digest",
	}

	res := svc.Classify(context.Background(), email("msg-4", "rep@partner.example.com"))

	assert.Equal(t, core.CategoryNewsletter, res.Category)
	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, "contract pending", res.DirectoryNote)
	assert.True(t, res.NeverAutoSuppress)
}

func TestClassifyDecisiveRuleSkipsAI(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{
		Category:      core.CategorySolicitation,
		Confidence:    0.95,
		MatchedRuleID: "promo",
	}
	parts.ai.res = &core.AIClassification{Category: core.CategoryNormal, Confidence: 1.0}

	res := svc.Classify(context.Background(), email("msg-5", "marketing@deals.example.com"))

	assert.Equal(t, core.CategorySolicitation, res.Category)
	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, "promo", res.MatchedRuleID)
	assert.Zero(t, parts.ai.calls)
}

func TestClassifyAIWinsBelowLowThreshold(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.3}
	parts.ai.res = &core.AIClassification{
		Category:   core.CategoryNewsletter,
		Confidence: 0.8,
		Rationale:  "weekly digest format",
	}

	res := svc.Classify(context.Background(), email("msg-6", "news@techblog.example.com"))

	assert.Equal(t, core.CategoryNewsletter, res.Category)
	assert.Equal(t, core.MethodAI, res.Method)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, 0.3, res.RuleConfidence)
	assert.Equal(t, 0.8, res.AIConfidence)
	assert.Equal(t, "weekly digest format", res.Rationale)
	assert.Equal(t, 1, parts.ai.calls)
}

func TestClassifyHybridWhenRuleSignalModerate(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryTransactional, Confidence: 0.6}
	parts.ai.res = &core.AIClassification{Category: core.CategoryTransactional, Confidence: 0.85}

	res := svc.Classify(context.Background(), email("msg-7", "no-reply@shop.example.com"))

	assert.Equal(t, core.CategoryTransactional, res.Category)
	assert.Equal(t, core.MethodHybrid, res.Method)
	assert.Equal(t, 0.85, res.Confidence)
}

func TestClassifyRuleWinsTies(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryTransactional, Confidence: 0.7}
	parts.ai.res = &core.AIClassification{Category: core.CategoryNewsletter, Confidence: 0.7}

	res := svc.Classify(context.Background(), email("msg-8", "no-reply@shop.example.com"))

	assert.Equal(t, core.CategoryTransactional, res.Category)
	assert.Equal(t, core.MethodRule, res.Method)
}

func TestClassifyAIErrorFallsBackToRules(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNewsletter, Confidence: 0.6}
	parts.ai.err = &core.AIError{Op: "classify", Attempts: 3, Err: errors.New("network down")}

	res := svc.Classify(context.Background(), email("msg-9", "news@blog.example.com"))

	assert.Equal(t, core.CategoryNewsletter, res.Category)
	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, "ai unavailable, rule result used", res.Note)
}

func TestClassifySessionLimitNote(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.2}
	parts.ai.err = &core.AIError{Op: "session", Err: core.ErrSessionLimit}

	res := svc.Classify(context.Background(), email("msg-10", "who@where.example.com"))

	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, "ai call budget exhausted, rule result used", res.Note)
}

func TestClassifyAIDisabledNote(t *testing.T) {
	opts := defaultOptions()
	opts.AIEnabled = false
	svc, parts := newTestService(t, opts)
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.2}

	res := svc.Classify(context.Background(), email("msg-11", "who@where.example.com"))

	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, "ai disabled, rule result used", res.Note)
	assert.Zero(t, parts.ai.calls)
}

func TestClassifySecondSameSenderHitsCache(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.3}
	parts.ai.res = &core.AIClassification{Category: core.CategoryNewsletter, Confidence: 0.8}

	first := svc.Classify(context.Background(), email("msg-12", "news@techblog.example.com"))
	require.Equal(t, 1, parts.ai.calls)
	require.Empty(t, first.FromCacheKey)

	second := svc.Classify(context.Background(), email("msg-13", "news@techblog.example.com"))

	assert.Equal(t, 1, parts.ai.calls)
	assert.Equal(t, "news@techblog.example.com", second.FromCacheKey)
	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Method, second.Method)
}

func TestClassifyDomainKeyServesSiblingSender(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategorySolicitation, Confidence: 0.95}

	svc.Classify(context.Background(), email("msg-14", "promo-a@deals.example.com"))
	res := svc.Classify(context.Background(), email("msg-15", "promo-b@deals.example.com"))

	assert.Equal(t, "deals.example.com", res.FromCacheKey)
	assert.Equal(t, core.CategorySolicitation, res.Category)
}

func TestClassifyCacheErrorTreatedAsMiss(t *testing.T) {
	parts := &serviceParts{
		dir:   &fakeDirectory{matches: map[string]*core.DirectoryMatch{}},
		rules: &fakeRules{res: core.RuleResult{Category: core.CategoryNormal, Confidence: 0.95}},
		ai:    &fakeAI{},
		store: store.NewMemoryStore(),
	}
	svc := core.NewClassifierService(
		parts.dir, parts.rules, parts.ai, failingCache{}, parts.store,
		thread.NewBooster(0.2, zap.NewNop()), nil, zap.NewNop(), defaultOptions(),
	)

	res := svc.Classify(context.Background(), email("msg-16", "who@where.example.com"))

	assert.Equal(t, core.MethodRule, res.Method)
	assert.Equal(t, core.CategoryNormal, res.Category)
}

func TestClassifyPanicYieldsFallback(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.panic = true

	res := svc.Classify(context.Background(), email("msg-17", "who@where.example.com"))

	require.NotNil(t, res)
	assert.Equal(t, core.CategoryNormal, res.Category)
	assert.Equal(t, core.MethodFallback, res.Method)
	assert.Equal(t, 0.5, res.Confidence)

	stored, err := parts.store.GetClassification(context.Background(), "msg-17")
	require.NoError(t, err)
	assert.Equal(t, core.MethodFallback, stored.Method)

	// Fallback results never poison the cache.
	_, err = parts.cache.Lookup(context.Background(), "who@where.example.com")
	assert.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestClassifyThreadReplyBoostsImportant(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryImportant, Confidence: 0.95}

	in := email("msg-18", "colleague@company.com")
	in.UserHasReplied = true
	res := svc.Classify(context.Background(), in)

	assert.Equal(t, core.CategoryImportant, res.Category)
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.ThreadBoosted)
}

func TestClassifyConfidenceAlwaysWithinBounds(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryImportant, Confidence: 0.99}

	in := email("msg-19", "colleague@company.com")
	in.UserHasReplied = true
	res := svc.Classify(context.Background(), in)

	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestClassifySecondaryTagsCappedAndDeduplicated(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{
		Category:   core.CategoryNormal,
		Confidence: 0.3,
		Secondary:  []core.Category{core.CategoryNewsletter, core.CategoryTransactional},
	}
	parts.ai.res = &core.AIClassification{
		Category:      core.CategorySolicitation,
		Confidence:    0.8,
		SecondaryTags: []core.Category{core.CategoryNewsletter, core.CategoryImportant, core.CategoryNormal},
	}

	res := svc.Classify(context.Background(), email("msg-20", "mix@where.example.com"))

	require.Equal(t, core.CategorySolicitation, res.Category)
	assert.Len(t, res.SecondaryTags, 3)
	assert.NotContains(t, res.SecondaryTags, core.CategorySolicitation)
	seen := map[core.Category]int{}
	for _, tag := range res.SecondaryTags {
		seen[tag]++
	}
	for tag, n := range seen {
		assert.Equal(t, 1, n, "tag %s duplicated", tag)
	}
}

func TestClassifyBatchPreservesOrder(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.95}

	emails := make([]core.EmailInput, 20)
	for i := range emails {
		emails[i] = email(fmt.Sprintf("batch-%d", i), fmt.Sprintf("sender-%d@each.example.com", i))
		emails[i].SenderDomain = fmt.Sprintf("domain-%d.example.com", i)
	}

	results := svc.ClassifyBatch(context.Background(), emails)

	require.Len(t, results, 20)
	for i, res := range results {
		require.NotNil(t, res, "result %d missing", i)
		assert.Equal(t, fmt.Sprintf("batch-%d", i), res.EmailID)
	}
}

func TestClassifyBatchAbandonedOnCancel(t *testing.T) {
	svc, parts := newTestService(t, defaultOptions())
	parts.rules.res = core.RuleResult{Category: core.CategoryNormal, Confidence: 0.95}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emails := []core.EmailInput{
		email("c-1", "a@x.example.com"),
		email("c-2", "b@y.example.com"),
	}
	results := svc.ClassifyBatch(ctx, emails)
	assert.Len(t, results, 2)
}

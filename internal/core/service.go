package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RuleResult is the output the service expects from the rule
// evaluator.
type RuleResult struct {
	Category      Category
	Confidence    float64
	MatchedRuleID string
	Secondary     []Category
}

// RuleEvaluator is the pure rule evaluation step.
type RuleEvaluator interface {
	Evaluate(email *EmailInput) RuleResult
}

// DirectoryMatch is a resolved sender directory entry.
type DirectoryMatch struct {
	Tier              string
	OverrideCategory  Category
	NeverAutoSuppress bool
	Note              string
}

// SenderDirectory resolves senders against the VIP/trusted/monitored/
// blocked lists.
type SenderDirectory interface {
	Resolve(sender, domain string) *DirectoryMatch
}

// ThreadBooster applies conversation participation signals to a
// tentative result.
type ThreadBooster interface {
	Apply(email *EmailInput, result *ClassificationResult)
}

// ExcerptBounder re-bounds body excerpts at the engine boundary.
type ExcerptBounder interface {
	Process(text string) string
}

// Directory tiers as the service consumes them.
const (
	TierVIP       = "vip"
	TierTrusted   = "trusted"
	TierMonitored = "monitored"
	TierBlocked   = "blocked"
)

// Options carries the tunable thresholds of the tiering controller.
type Options struct {
	// HighConfidence is the rule confidence at or above which the AI
	// is skipped.
	HighConfidence float64
	// LowConfidence separates "ai" from "hybrid" when the AI result
	// wins the combination.
	LowConfidence float64
	// MaxSecondaryTags caps the combined secondary tag set.
	MaxSecondaryTags int
	// AIEnabled gates the CALL_AI transition entirely.
	AIEnabled bool
	// CacheEnabled gates the CHECK_CACHE state and cache writes.
	CacheEnabled bool
	// CacheTTL is the lifetime of new cache entries.
	CacheTTL time.Duration
	// DomainKeys additionally writes a domain-level cache entry on
	// persist.
	DomainKeys bool
	// Workers bounds batch classification concurrency.
	Workers int
}

// ClassifierService is the tiering controller: it orchestrates the
// sender directory, cache, rule evaluator, AI adapter and thread
// booster into one final decision per email. Classification never
// returns an error; every failure degrades to a still-valid result.
type ClassifierService struct {
	directory SenderDirectory
	rules     RuleEvaluator
	ai        LLMClassifier
	cache     CacheRepository
	store     ClassificationStore
	booster   ThreadBooster
	excerpts  ExcerptBounder
	logger    *zap.Logger
	opts      Options
	keys      *keyedMutex
}

// NewClassifierService creates the tiering controller. The AI
// classifier may be nil when disabled; cache and store must be
// non-nil (use the memory implementations for ad-hoc runs).
func NewClassifierService(
	directory SenderDirectory,
	rules RuleEvaluator,
	ai LLMClassifier,
	cache CacheRepository,
	store ClassificationStore,
	booster ThreadBooster,
	excerpts ExcerptBounder,
	logger *zap.Logger,
	opts Options,
) *ClassifierService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxSecondaryTags < 0 {
		opts.MaxSecondaryTags = 0
	}
	return &ClassifierService{
		directory: directory,
		rules:     rules,
		ai:        ai,
		cache:     cache,
		store:     store,
		booster:   booster,
		excerpts:  excerpts,
		logger:    logger,
		opts:      opts,
		keys:      newKeyedMutex(),
	}
}

// Classify produces the final decision for one email. It never
// returns an error and never panics past this boundary: any unhandled
// failure becomes a fallback result (category normal, confidence 0.5,
// method fallback), which is still persisted.
func (s *ClassifierService) Classify(ctx context.Context, email EmailInput) (result *ClassificationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Classification panicked, using fallback",
				zap.String("email_id", email.ID),
				zap.Any("panic", r))
			result = s.fallbackResult(&email, start, "classification failed internally")
			s.persist(ctx, &email, result)
		}
	}()

	// Body excerpts are bounded upstream, but this boundary enforces
	// the limit again so a full body can never reach a prompt.
	if s.excerpts != nil {
		email.BodyExcerpt = s.excerpts.Process(email.BodyExcerpt)
	}

	result = s.classify(ctx, &email, start)
	result.Elapsed = time.Since(start)
	s.persist(ctx, &email, result)
	return result
}

// classify runs the state machine up to (but not including) PERSIST.
func (s *ClassifierService) classify(ctx context.Context, email *EmailInput, start time.Time) *ClassificationResult {
	domain := email.Domain()

	// CHECK_DIRECTORY
	if s.directory != nil {
		if match := s.directory.Resolve(email.Sender, domain); match != nil {
			if short := s.directoryResult(email, domain, match); short != nil {
				return short
			}
			// Monitored entries don't short-circuit; their note rides
			// along on whatever the pipeline decides.
			result := s.classifyBody(ctx, email, domain)
			result.DirectoryNote = match.Note
			result.NeverAutoSuppress = match.NeverAutoSuppress
			return result
		}
	}

	return s.classifyBody(ctx, email, domain)
}

// directoryResult builds the short-circuit result for a VIP, trusted
// or blocked match; monitored matches return nil.
func (s *ClassifierService) directoryResult(email *EmailInput, domain string, match *DirectoryMatch) *ClassificationResult {
	base := &ClassificationResult{
		EmailID:           email.ID,
		Sender:            email.Sender,
		SenderDomain:      domain,
		Confidence:        1.0,
		NeverAutoSuppress: match.NeverAutoSuppress,
		DirectoryNote:     match.Note,
		CreatedAt:         time.Now(),
	}

	switch match.Tier {
	case TierBlocked:
		// Blocked always lands in the junk bucket; a category
		// override never applies to a block.
		base.Category = CategorySolicitation
		base.Method = MethodBlocked
		return base
	case TierVIP, TierTrusted:
		base.Category = CategoryImportant
		base.Method = MethodVIP
		if match.OverrideCategory != "" {
			base.Category = match.OverrideCategory
		}
		return base
	default:
		return nil
	}
}

// classifyBody runs CHECK_CACHE → APPLY_RULES → {SKIP_AI|CALL_AI} →
// COMBINE → APPLY_THREAD_SIGNAL.
func (s *ClassifierService) classifyBody(ctx context.Context, email *EmailInput, domain string) *ClassificationResult {
	// CHECK_CACHE
	if cached, key := s.lookupCache(ctx, email.Sender, domain); cached != nil {
		s.logger.Debug("Cache hit",
			zap.String("email_id", email.ID),
			zap.String("key", key))
		return &ClassificationResult{
			EmailID:      email.ID,
			Sender:       email.Sender,
			SenderDomain: domain,
			Category:     cached.Category,
			Confidence:   cached.Confidence,
			Method:       cached.Method,
			FromCacheKey: key,
			CreatedAt:    time.Now(),
		}
	}

	// APPLY_RULES
	ruleRes := s.rules.Evaluate(email)

	result := &ClassificationResult{
		EmailID:        email.ID,
		Sender:         email.Sender,
		SenderDomain:   domain,
		Category:       ruleRes.Category,
		Confidence:     ruleRes.Confidence,
		Method:         MethodRule,
		MatchedRuleID:  ruleRes.MatchedRuleID,
		RuleConfidence: ruleRes.Confidence,
		SecondaryTags:  capTags(ruleRes.Secondary, ruleRes.Category, nil, s.opts.MaxSecondaryTags),
		CreatedAt:      time.Now(),
	}

	// SKIP_AI when the rules alone were decisive.
	if ruleRes.Confidence >= s.opts.HighConfidence {
		s.applyThreadSignal(email, result)
		return result
	}

	// CALL_AI
	if !s.opts.AIEnabled || s.ai == nil {
		result.Note = "ai disabled, rule result used"
		s.applyThreadSignal(email, result)
		return result
	}

	aiRes, err := s.ai.ClassifyEmail(ctx, email)
	if err != nil {
		// The rule output is still a valid signal; method stays rule.
		if errors.Is(err, ErrSessionLimit) {
			result.Note = "ai call budget exhausted, rule result used"
		} else {
			result.Note = "ai unavailable, rule result used"
		}
		s.logger.Warn("AI classification failed, falling back to rules",
			zap.String("email_id", email.ID),
			zap.Error(err))
		s.applyThreadSignal(email, result)
		return result
	}

	// COMBINE: the source with the higher confidence carries the
	// category; the rule result wins ties.
	result.AIConfidence = aiRes.Confidence
	result.Rationale = aiRes.Rationale
	if aiRes.Confidence > ruleRes.Confidence {
		result.Category = aiRes.Category
		result.Confidence = aiRes.Confidence
		if ruleRes.Confidence < s.opts.LowConfidence {
			result.Method = MethodAI
		} else {
			result.Method = MethodHybrid
		}
	}
	result.SecondaryTags = capTags(ruleRes.Secondary, result.Category, aiRes.SecondaryTags, s.opts.MaxSecondaryTags)

	s.applyThreadSignal(email, result)
	return result
}

// applyThreadSignal runs APPLY_THREAD_SIGNAL exactly once and clamps
// confidence into [0,1].
func (s *ClassifierService) applyThreadSignal(email *EmailInput, result *ClassificationResult) {
	if s.booster != nil {
		s.booster.Apply(email, result)
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
}

// lookupCache checks the address key then the domain key, serialized
// per key. Cache errors degrade to a miss.
func (s *ClassifierService) lookupCache(ctx context.Context, sender, domain string) (*CachedClassification, string) {
	if !s.opts.CacheEnabled || s.cache == nil {
		return nil, ""
	}

	keys := []string{sender}
	if domain != "" && domain != sender {
		keys = append(keys, domain)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		unlock := s.keys.Lock(key)
		entry, err := s.cache.Lookup(ctx, key)
		unlock()
		if err == nil {
			return entry, key
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Cache lookup failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return nil, ""
}

// persist runs PERSIST: write the result, then refresh the cache.
// Persistence failures are warnings; the in-memory result is still
// returned to the caller.
func (s *ClassifierService) persist(ctx context.Context, email *EmailInput, result *ClassificationResult) {
	if s.store != nil {
		if err := s.store.SaveClassification(ctx, result); err != nil {
			s.logger.Warn("Failed to persist classification",
				zap.String("email_id", result.EmailID),
				zap.Error(err))
		}
	}

	s.updateCache(ctx, email, result)
}

// updateCache writes sender (and optionally domain) entries for
// recomputed results. Directory short-circuits, cache hits and
// fallback results are not cached.
func (s *ClassifierService) updateCache(ctx context.Context, email *EmailInput, result *ClassificationResult) {
	if !s.opts.CacheEnabled || s.cache == nil || result.FromCacheKey != "" {
		return
	}
	switch result.Method {
	case MethodRule, MethodAI, MethodHybrid:
	default:
		return
	}

	now := time.Now()
	put := func(key string, keyType CacheKeyType) {
		if key == "" {
			return
		}
		entry := &CachedClassification{
			Key:        key,
			KeyType:    keyType,
			Category:   result.Category,
			Confidence: result.Confidence,
			Method:     result.Method,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.opts.CacheTTL),
			LastUsed:   now,
		}
		unlock := s.keys.Lock(key)
		err := s.cache.Put(ctx, entry)
		unlock()
		if err != nil {
			s.logger.Warn("Failed to update cache",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	put(email.Sender, CacheKeyAddress)
	if s.opts.DomainKeys {
		put(result.SenderDomain, CacheKeyDomain)
	}
}

func (s *ClassifierService) fallbackResult(email *EmailInput, start time.Time, note string) *ClassificationResult {
	return &ClassificationResult{
		EmailID:      email.ID,
		Sender:       email.Sender,
		SenderDomain: email.Domain(),
		Category:     CategoryNormal,
		Confidence:   0.5,
		Method:       MethodFallback,
		Rationale:    note,
		Elapsed:      time.Since(start),
		CreatedAt:    time.Now(),
	}
}

// ClassifyBatch classifies independent emails concurrently with a
// bounded worker pool. Results are returned in input order. The
// caller may abandon the batch between emails by cancelling the
// context; the email in flight still completes on its own budget.
func (s *ClassifierService) ClassifyBatch(ctx context.Context, emails []EmailInput) []*ClassificationResult {
	results := make([]*ClassificationResult, len(emails))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.Classify(ctx, emails[i])
			}
		}()
	}

	for i := range emails {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// capTags unions the rule secondary categories with the AI secondary
// tags, de-duplicated, excluding the primary, capped at max.
func capTags(ruleTags []Category, primary Category, aiTags []Category, max int) []Category {
	if max == 0 {
		return nil
	}
	var out []Category
	seen := map[Category]bool{primary: true}
	for _, set := range [][]Category{ruleTags, aiTags} {
		for _, t := range set {
			if seen[t] || !t.Valid() {
				continue
			}
			seen[t] = true
			out = append(out, t)
			if len(out) == max {
				return out
			}
		}
	}
	return out
}

package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/directory"
	"github.com/arlo/mail-triage/internal/rules"
	"github.com/arlo/mail-triage/internal/thread"
	"github.com/arlo/mail-triage/internal/utils"
)

// EngineFactory assembles the tiering controller from its parts.
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory.
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{cfg: cfg, logger: logger}
}

// CreateEvaluator loads the rule document and builds the evaluator.
func (f *EngineFactory) CreateEvaluator() (*rules.Evaluator, error) {
	ruleset, err := config.LoadRules(f.cfg.GetString("rules.path"))
	if err != nil {
		return nil, err
	}
	evaluator := rules.NewEvaluator(ruleset)
	f.logger.Info("Loaded category rules", zap.Int("enabled", evaluator.Len()))
	return evaluator, nil
}

// CreateDirectory loads the sender directory document.
func (f *EngineFactory) CreateDirectory() (*directory.Directory, error) {
	entries, err := config.LoadSenderDirectory(f.cfg.GetString("directory.path"))
	if err != nil {
		return nil, err
	}
	return directory.New(entries, f.logger), nil
}

// CreateService wires the classifier service from the already-built
// collaborators.
func (f *EngineFactory) CreateService(
	dir *directory.Directory,
	evaluator *rules.Evaluator,
	ai core.LLMClassifier,
	cacheRepo core.CacheRepository,
	classStore core.ClassificationStore,
) (*core.ClassifierService, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}

	booster := thread.NewBooster(classifierCfg.ThreadReplyBoost, f.logger)
	excerpts := utils.NewTextProcessor(classifierCfg.ExcerptLimit, f.logger)

	opts := core.Options{
		HighConfidence:   classifierCfg.HighConfidence,
		LowConfidence:    classifierCfg.LowConfidence,
		MaxSecondaryTags: classifierCfg.MaxSecondaryTags,
		AIEnabled:        classifierCfg.AIEnabled && ai != nil,
		CacheEnabled:     cacheCfg.Enabled && cacheRepo != nil,
		CacheTTL:         cacheCfg.TTL,
		DomainKeys:       cacheCfg.DomainKeys,
		Workers:          classifierCfg.Workers,
	}

	return core.NewClassifierService(
		dir, evaluator, ai, cacheRepo, classStore, booster, excerpts, f.logger, opts,
	), nil
}

package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/adapters/bedrock"
	"github.com/arlo/mail-triage/internal/adapters/gemini"
	"github.com/arlo/mail-triage/internal/adapters/openai"
	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/llm"
)

// LLMFactory creates LLM classifiers.
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory.
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{cfg: cfg, logger: logger}
}

// CreateClassifier creates the configured provider client wrapped in
// the bounded retry layer. Returns nil (no error) when AI is disabled
// so the controller can run rule-only.
func (f *LLMFactory) CreateClassifier() (core.LLMClassifier, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	if !classifierCfg.AIEnabled {
		f.logger.Info("AI classification disabled, running rule-only")
		return nil, nil
	}

	var client core.LLMClassifier
	switch provider := f.cfg.GetLLM().Provider; provider {
	case "openai":
		client, err = openai.NewFactory(f.cfg, f.logger).CreateClient()
	case "bedrock":
		client, err = bedrock.NewFactory(f.cfg, f.logger).CreateClient()
	case "gemini":
		client, err = gemini.NewFactory(f.cfg, f.logger).CreateClient()
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", core.ErrConfiguration, provider)
	}
	if err != nil {
		return nil, err
	}

	policy := llm.RetryPolicy{
		MaxAttempts:  classifierCfg.AIMaxAttempts,
		Backoff:      classifierCfg.AIBackoff,
		Timeout:      classifierCfg.AITimeout,
		SessionLimit: classifierCfg.AISessionLimit,
	}
	return llm.NewRetrying(client, policy, f.logger), nil
}

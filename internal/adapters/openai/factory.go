package openai

import (
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
)

// Factory creates OpenAI-backed classifiers.
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAI clients.
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// CreateClient creates a new OpenAI classifier. The API key is read
// from the configured environment variable; the base URL is
// overridable so any OpenAI-compatible server works.
func (f *Factory) CreateClient() (core.LLMClassifier, error) {
	openaiCfg := f.cfg.GetOpenAI()

	apiKey := os.Getenv(openaiCfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set", core.ErrConfiguration, openaiCfg.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if openaiCfg.BaseURL != "" {
		clientCfg.BaseURL = openaiCfg.BaseURL
	}

	return NewClient(
		openai.NewClientWithConfig(clientCfg),
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.logger,
	), nil
}

package di

import (
	"go.uber.org/dig"

	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/factory"
	"github.com/arlo/mail-triage/internal/logging"
)

// BuildContainer creates and configures a dependency injection
// container for the batch service binary.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewRunnerFactory); err != nil {
		return nil, err
	}

	// Register the LLM classifier (nil when AI is disabled)
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClassifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register the cache repository (nil when caching is disabled)
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register the classification store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ClassificationStore, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register the rule evaluator and sender directory
	if err := container.Provide((*factory.EngineFactory).CreateEvaluator); err != nil {
		return nil, err
	}
	if err := container.Provide((*factory.EngineFactory).CreateDirectory); err != nil {
		return nil, err
	}

	// Register the classifier service
	if err := container.Provide((*factory.EngineFactory).CreateService); err != nil {
		return nil, err
	}

	// Register the feedback service
	if err := container.Provide(core.NewFeedbackService); err != nil {
		return nil, err
	}

	// Register the runner
	if err := container.Provide(func(f *factory.RunnerFactory, service *core.ClassifierService) (core.Runner, error) {
		return f.CreateRunner(service)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

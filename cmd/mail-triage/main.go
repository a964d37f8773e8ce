package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies
// injected.
func run(
	logger *zap.Logger,
	triageRunner core.Runner,
	llmClient core.LLMClassifier,
	cacheRepo core.CacheRepository,
	classStore core.ClassificationStore,
) error {
	defer logger.Sync()

	// A batch may be abandoned between emails on SIGINT/SIGTERM; the
	// email in flight still completes on its own call budget.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := triageRunner.Run(ctx)
	if runErr != nil {
		logger.Error("Runner failed", zap.Error(runErr))
	}

	if err := triageRunner.Stop(); err != nil {
		logger.Error("Failed to stop runner", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if closer, ok := classStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return runErr
}

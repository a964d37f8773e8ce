package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/adapters/runner"
	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/factory"
	"github.com/arlo/mail-triage/internal/logging"
)

var (
	mode = flag.String("mode", "classify", "Operation mode (classify, feedback, stats)")

	// classify flags
	inputFile = flag.String("input", "", "Input email JSON file (use stdin if not specified)")

	// feedback flags
	emailID   = flag.String("email-id", "", "Email identifier the feedback refers to")
	category  = flag.String("category", "", "Corrected primary category")
	secondary = flag.String("secondary", "", "Comma-separated corrected secondary tags")
	comment   = flag.String("comment", "", "Optional free-form feedback comment")

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.NewFromFile(*configFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	cacheFactory := factory.NewCacheFactory(cfg, logger)
	cacheRepo, err := cacheFactory.CreateCacheRepository()
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}
	defer stopCache(cacheRepo)

	storeFactory := factory.NewStoreFactory(cfg, logger)
	classStore, err := storeFactory.CreateStore()
	if err != nil {
		logger.Fatal("Failed to create classification store", zap.Error(err))
	}
	defer closeStore(classStore, logger)

	ctx := context.Background()

	switch *mode {
	case "classify":
		runClassify(ctx, cfg, cacheRepo, classStore, logger)
	case "feedback":
		runFeedback(ctx, cacheRepo, classStore, logger)
	case "stats":
		runStats(ctx, cacheRepo, classStore, logger)
	default:
		logger.Fatal("Unknown mode", zap.String("mode", *mode))
	}
}

func runClassify(
	ctx context.Context,
	cfg *config.Config,
	cacheRepo core.CacheRepository,
	classStore core.ClassificationStore,
	logger *zap.Logger,
) {
	llmFactory := factory.NewLLMFactory(cfg, logger)
	llmClient, err := llmFactory.CreateClassifier()
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	defer closeLLM(llmClient, logger)

	engineFactory := factory.NewEngineFactory(cfg, logger)
	evaluator, err := engineFactory.CreateEvaluator()
	if err != nil {
		logger.Fatal("Failed to load category rules", zap.Error(err))
	}
	dir, err := engineFactory.CreateDirectory()
	if err != nil {
		logger.Fatal("Failed to load sender directory", zap.Error(err))
	}
	service, err := engineFactory.CreateService(dir, evaluator, llmClient, cacheRepo, classStore)
	if err != nil {
		logger.Fatal("Failed to create classifier service", zap.Error(err))
	}

	cli := runner.NewCLIRunner(service, logger, *inputFile, *verbose)
	if err := cli.Run(ctx); err != nil {
		logger.Fatal("Classification failed", zap.Error(err))
	}
}

func runFeedback(
	ctx context.Context,
	cacheRepo core.CacheRepository,
	classStore core.ClassificationStore,
	logger *zap.Logger,
) {
	if *emailID == "" || *category == "" {
		logger.Fatal("Feedback mode requires -email-id and -category")
	}

	corrected, err := core.ParseCategory(*category)
	if err != nil {
		logger.Fatal("Invalid corrected category", zap.Error(err))
	}
	var tags []core.Category
	if *secondary != "" {
		for _, raw := range strings.Split(*secondary, ",") {
			tag, err := core.ParseCategory(strings.TrimSpace(raw))
			if err != nil {
				logger.Fatal("Invalid secondary tag", zap.Error(err))
			}
			tags = append(tags, tag)
		}
	}

	feedback := core.NewFeedbackService(classStore, cacheRepo, logger)
	entry, err := feedback.Record(ctx, *emailID, corrected, tags, *comment)
	if err != nil {
		logger.Fatal("Failed to record feedback", zap.Error(err))
	}

	fmt.Printf("Feedback recorded: %s\n", entry.ID)
	fmt.Printf("  Email:     %s\n", entry.EmailID)
	fmt.Printf("  Original:  %s (%.2f, %s)\n", entry.OriginalCategory, entry.OriginalConfidence, entry.OriginalMethod)
	fmt.Printf("  Corrected: %s\n", entry.CorrectedCategory)
	if len(entry.CorrectedSecondary) > 0 {
		fmt.Printf("  Secondary: %s\n", joinCategories(entry.CorrectedSecondary))
	}
	fmt.Printf("  Cache invalidated for %s and %s\n", entry.Sender, entry.SenderDomain)
}

func runStats(
	ctx context.Context,
	cacheRepo core.CacheRepository,
	classStore core.ClassificationStore,
	logger *zap.Logger,
) {
	feedback := core.NewFeedbackService(classStore, cacheRepo, logger)
	summary, err := feedback.Summary(ctx)
	if err != nil {
		logger.Fatal("Failed to compute feedback summary", zap.Error(err))
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode summary", zap.Error(err))
	}
	fmt.Println(string(out))
}

func joinCategories(tags []core.Category) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}

func closeLLM(llmClient core.LLMClassifier, logger *zap.Logger) {
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close LLM client", zap.Error(err))
		}
	}
}

func stopCache(cacheRepo core.CacheRepository) {
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}

func closeStore(classStore core.ClassificationStore, logger *zap.Logger) {
	if closer, ok := classStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
}

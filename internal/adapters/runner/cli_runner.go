package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// CLIRunner classifies a single email and prints a human-readable
// summary, for ad-hoc inspection from the command line.
type CLIRunner struct {
	service *core.ClassifierService
	logger  *zap.Logger
	input   string
	verbose bool
}

// NewCLIRunner creates a runner reading one EmailInput JSON document
// from input; "-" selects stdin.
func NewCLIRunner(service *core.ClassifierService, logger *zap.Logger, input string, verbose bool) *CLIRunner {
	return &CLIRunner{
		service: service,
		logger:  logger,
		input:   input,
		verbose: verbose,
	}
}

// Run classifies the email and prints the decision.
func (r *CLIRunner) Run(ctx context.Context) error {
	var reader io.Reader = os.Stdin
	if r.input != "" && r.input != "-" {
		f, err := os.Open(r.input)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var email core.EmailInput
	if err := json.NewDecoder(reader).Decode(&email); err != nil {
		return fmt.Errorf("failed to parse email input: %w", err)
	}

	fmt.Printf("\n=== Email ===\n")
	fmt.Printf("From: %s <%s>\n", email.SenderName, email.Sender)
	fmt.Printf("Subject: %s\n", email.Subject)
	if r.verbose {
		fmt.Printf("Excerpt:\n%s\n", email.BodyExcerpt)
	}

	result := r.service.Classify(ctx, email)

	fmt.Printf("\n=== Classification ===\n")
	fmt.Printf("Category: %s\n", result.Category)
	if len(result.SecondaryTags) > 0 {
		tags := make([]string, len(result.SecondaryTags))
		for i, t := range result.SecondaryTags {
			tags[i] = string(t)
		}
		fmt.Printf("Secondary: %s\n", strings.Join(tags, ", "))
	}
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Method: %s\n", result.Method)
	if result.MatchedRuleID != "" {
		fmt.Printf("Matched rule: %s\n", result.MatchedRuleID)
	}
	if result.Rationale != "" {
		fmt.Printf("Rationale: %s\n", result.Rationale)
	}
	if result.Note != "" {
		fmt.Printf("Note: %s\n", result.Note)
	}
	if result.FromCacheKey != "" {
		fmt.Printf("Served from cache: %s\n", result.FromCacheKey)
	}
	fmt.Printf("Elapsed: %s\n\n", result.Elapsed)

	return nil
}

// Stop releases resources; the CLI runner holds none.
func (r *CLIRunner) Stop() error {
	return nil
}

package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// JSONLRunner consumes EmailInput records as JSON lines, classifies
// them with a bounded worker pool, and emits one ClassificationResult
// JSON line per input. Mailbox retrieval lives upstream; this runner
// is the boundary where extracted metadata enters the engine.
type JSONLRunner struct {
	service *core.ClassifierService
	logger  *zap.Logger
	input   string
	output  string
}

// NewJSONLRunner creates a runner reading from input and writing to
// output; "-" selects stdin/stdout.
func NewJSONLRunner(service *core.ClassifierService, logger *zap.Logger, input, output string) *JSONLRunner {
	return &JSONLRunner{
		service: service,
		logger:  logger,
		input:   input,
		output:  output,
	}
}

// batchStats mirrors the bookkeeping of one processing pass.
type batchStats struct {
	Total     int
	Skipped   int
	ByMethod  map[core.Method]int
	Fallbacks int
}

// Run processes the whole input stream. Malformed lines are counted
// and skipped rather than aborting the batch.
func (r *JSONLRunner) Run(ctx context.Context) error {
	in, closeIn, err := r.openInput()
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := r.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	stats := batchStats{ByMethod: make(map[core.Method]int)}
	start := time.Now()

	var emails []core.EmailInput
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Total++
		var email core.EmailInput
		if err := json.Unmarshal(line, &email); err != nil {
			stats.Skipped++
			r.logger.Warn("Skipping malformed input line", zap.Error(err))
			continue
		}
		emails = append(emails, email)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	results := r.service.ClassifyBatch(ctx, emails)

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	for _, result := range results {
		if result == nil {
			// Batch was abandoned before this email was reached.
			continue
		}
		stats.ByMethod[result.Method]++
		if result.Method == core.MethodFallback {
			stats.Fallbacks++
		}
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	fields := []zap.Field{
		zap.Int("total", stats.Total),
		zap.Int("skipped", stats.Skipped),
		zap.Int("fallbacks", stats.Fallbacks),
		zap.Duration("elapsed", time.Since(start)),
	}
	for method, count := range stats.ByMethod {
		fields = append(fields, zap.Int("method_"+string(method), count))
	}
	r.logger.Info("Batch classification complete", fields...)

	return nil
}

// Stop releases resources; the JSONL runner holds none between runs.
func (r *JSONLRunner) Stop() error {
	return nil
}

func (r *JSONLRunner) openInput() (io.Reader, func(), error) {
	if r.input == "" || r.input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(r.input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func (r *JSONLRunner) openOutput() (io.Writer, func(), error) {
	if r.output == "" || r.output == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(r.output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

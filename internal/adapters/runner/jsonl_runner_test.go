package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/adapters/cache"
	"github.com/arlo/mail-triage/internal/adapters/store"
	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/rules"
	"github.com/arlo/mail-triage/internal/thread"
)

func newRunnerService(t *testing.T) *core.ClassifierService {
	t.Helper()

	evaluator := rules.NewEvaluator([]rules.CategoryRule{
		{
			ID:              "promo",
			Category:        core.CategorySolicitation,
			Enabled:         true,
			Priority:        100,
			ConfidenceBoost: 0.95,
			SubjectKeywords: []string{"limited time offer"},
		},
	})

	return core.NewClassifierService(
		nil,
		evaluator,
		nil,
		cache.NewMemoryCache(zap.NewNop(), 0),
		store.NewMemoryStore(),
		thread.NewBooster(0.2, zap.NewNop()),
		nil,
		zap.NewNop(),
		core.Options{
			HighConfidence:   0.9,
			LowConfidence:    0.5,
			MaxSecondaryTags: 3,
			CacheEnabled:     true,
			CacheTTL:         time.Hour,
			Workers:          2,
		},
	)
}

func TestJSONLRunnerProcessesStream(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.jsonl")
	outPath := filepath.Join(dir, "out.jsonl")

	lines := []string{
		`{"id":"m1","sender":"marketing@deals.example.com","subject":"Limited Time Offer - 50% Off!","body_excerpt":"sale"}`,
		`not valid json`,
		`{"id":"m2","sender":"colleague@company.com","subject":"lunch?","body_excerpt":"tomorrow?"}`,
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(inPath, []byte(content), 0o644))

	r := NewJSONLRunner(newRunnerService(t), zap.NewNop(), inPath, outPath)
	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Stop())

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	var results []core.ClassificationResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var res core.ClassificationResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		results = append(results, res)
	}
	require.NoError(t, scanner.Err())

	// The malformed line is skipped, not fatal.
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].EmailID)
	assert.Equal(t, core.CategorySolicitation, results[0].Category)
	assert.Equal(t, core.MethodRule, results[0].Method)
	assert.Equal(t, "m2", results[1].EmailID)
	assert.Equal(t, core.CategoryNormal, results[1].Category)
}

func TestJSONLRunnerMissingInputFile(t *testing.T) {
	r := NewJSONLRunner(newRunnerService(t), zap.NewNop(), filepath.Join(t.TempDir(), "nope.jsonl"), "-")
	assert.Error(t, r.Run(context.Background()))
}

func TestJSONLRunnerEmptyInput(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.jsonl")
	outPath := filepath.Join(dir, "out.jsonl")
	require.NoError(t, os.WriteFile(inPath, nil, 0o644))

	r := NewJSONLRunner(newRunnerService(t), zap.NewNop(), inPath, outPath)
	require.NoError(t, r.Run(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

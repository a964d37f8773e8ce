package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// SQLiteStore persists classifications and user feedback in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens the database and bootstraps the schema.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classifications (
			email_id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			sender_domain TEXT NOT NULL,
			category TEXT NOT NULL,
			secondary_tags TEXT,
			confidence REAL NOT NULL,
			method TEXT NOT NULL,
			matched_rule_id TEXT,
			rule_confidence REAL,
			ai_confidence REAL,
			rationale TEXT,
			note TEXT,
			from_cache_key TEXT,
			never_auto_suppress BOOLEAN NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create classifications table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			email_id TEXT NOT NULL REFERENCES classifications(email_id),
			sender TEXT NOT NULL,
			sender_domain TEXT NOT NULL,
			original_category TEXT NOT NULL,
			original_secondary TEXT,
			original_confidence REAL NOT NULL,
			original_method TEXT NOT NULL,
			corrected_category TEXT NOT NULL,
			corrected_secondary TEXT,
			comment TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create feedback table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func encodeTags(tags []core.Category) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(s string) []core.Category {
	if s == "" {
		return nil
	}
	var tags []core.Category
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

// SaveClassification writes one classification row keyed by email
// identifier.
func (s *SQLiteStore) SaveClassification(ctx context.Context, result *core.ClassificationResult) error {
	tags, err := encodeTags(result.SecondaryTags)
	if err != nil {
		return fmt.Errorf("%w: failed to encode tags: %v", core.ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO classifications
			(email_id, sender, sender_domain, category, secondary_tags, confidence, method,
			 matched_rule_id, rule_confidence, ai_confidence, rationale, note, from_cache_key,
			 never_auto_suppress, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.EmailID, result.Sender, result.SenderDomain, string(result.Category), tags,
		result.Confidence, string(result.Method), result.MatchedRuleID, result.RuleConfidence,
		result.AIConfidence, result.Rationale, result.Note, result.FromCacheKey,
		result.NeverAutoSuppress, result.Elapsed.Milliseconds(),
		result.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: failed to save classification for %s: %v", core.ErrPersistence, result.EmailID, err)
	}
	return nil
}

// GetClassification returns the stored classification for an email.
func (s *SQLiteStore) GetClassification(ctx context.Context, emailID string) (*core.ClassificationResult, error) {
	result := &core.ClassificationResult{EmailID: emailID}
	var category, method, tags, createdAt string
	var elapsedMS int64

	err := s.db.QueryRowContext(ctx, `
		SELECT sender, sender_domain, category, secondary_tags, confidence, method,
		       matched_rule_id, rule_confidence, ai_confidence, rationale, note, from_cache_key,
		       never_auto_suppress, elapsed_ms, created_at
		FROM classifications WHERE email_id = ?
	`, emailID).Scan(
		&result.Sender, &result.SenderDomain, &category, &tags, &result.Confidence, &method,
		&result.MatchedRuleID, &result.RuleConfidence, &result.AIConfidence,
		&result.Rationale, &result.Note, &result.FromCacheKey,
		&result.NeverAutoSuppress, &elapsedMS, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to load classification for %s: %v", core.ErrPersistence, emailID, err)
	}

	result.Category = core.Category(category)
	result.Method = core.Method(method)
	result.SecondaryTags = decodeTags(tags)
	result.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if result.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		s.logger.Warn("Failed to parse created_at", zap.Error(err), zap.String("email_id", emailID))
	}

	return result, nil
}

// SaveFeedback appends a feedback record.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, feedback *core.UserFeedback) error {
	origTags, err := encodeTags(feedback.OriginalSecondary)
	if err != nil {
		return fmt.Errorf("%w: failed to encode tags: %v", core.ErrPersistence, err)
	}
	corrTags, err := encodeTags(feedback.CorrectedSecondary)
	if err != nil {
		return fmt.Errorf("%w: failed to encode tags: %v", core.ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback
			(id, email_id, sender, sender_domain, original_category, original_secondary,
			 original_confidence, original_method, corrected_category, corrected_secondary,
			 comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feedback.ID, feedback.EmailID, feedback.Sender, feedback.SenderDomain,
		string(feedback.OriginalCategory), origTags, feedback.OriginalConfidence,
		string(feedback.OriginalMethod), string(feedback.CorrectedCategory), corrTags,
		feedback.Comment, feedback.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: failed to save feedback %s: %v", core.ErrPersistence, feedback.ID, err)
	}
	return nil
}

// Summary aggregates the persisted feedback log.
func (s *SQLiteStore) Summary(ctx context.Context) (*core.FeedbackSummary, error) {
	summary := &core.FeedbackSummary{
		ByCorrectedCategory: make(map[core.Category]int64),
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classifications`).Scan(&summary.TotalClassifications)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count classifications: %v", core.ErrPersistence, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT corrected_category, COUNT(*) FROM feedback GROUP BY corrected_category
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to aggregate feedback: %v", core.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("%w: failed to scan feedback row: %v", core.ErrPersistence, err)
		}
		summary.ByCorrectedCategory[core.Category(category)] = count
		summary.TotalFeedback += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: feedback aggregation failed: %v", core.ErrPersistence, err)
	}

	if summary.TotalClassifications > 0 {
		summary.CorrectionRate = float64(summary.TotalFeedback) / float64(summary.TotalClassifications)
	}

	return summary, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package utils

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultExcerptLimit is the bound on body excerpts entering the
// engine. The upstream producer owns truncation; this limit is
// enforced again here so a full body can never leak into a prompt.
const DefaultExcerptLimit = 500

// TextProcessor provides utilities for bounding and sanitizing text.
type TextProcessor struct {
	excerptLimit int
	logger       *zap.Logger
}

// NewTextProcessor creates a new TextProcessor with the configured
// excerpt limit.
func NewTextProcessor(excerptLimit int, logger *zap.Logger) *TextProcessor {
	if excerptLimit <= 0 {
		excerptLimit = DefaultExcerptLimit
	}
	return &TextProcessor{
		excerptLimit: excerptLimit,
		logger:       logger,
	}
}

// Excerpt bounds text to the configured excerpt limit, keeping the
// result valid UTF-8.
func (tp *TextProcessor) Excerpt(text string) string {
	return tp.Truncate(text, tp.excerptLimit)
}

// Truncate safely truncates text to maxSize bytes and ensures the
// result is valid UTF-8.
func (tp *TextProcessor) Truncate(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Back off until the cut lands on a rune boundary.
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	if tp.logger != nil {
		tp.logger.Debug("Text truncated",
			zap.Int("original_size", len(text)),
			zap.Int("truncated_size", len(truncated)),
			zap.Int("max_size", maxSize))
	}

	return truncated
}

// SanitizeUTF8 ensures the string contains only valid UTF-8.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	return string(result)
}

// Process bounds and sanitizes an excerpt in one operation.
func (tp *TextProcessor) Process(text string) string {
	return tp.SanitizeUTF8(tp.Excerpt(text))
}

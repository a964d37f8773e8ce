package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/llm"
)

// Client implements the LLMClassifier interface against any
// OpenAI-compatible chat completion endpoint.
type Client struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new OpenAI-backed classifier.
func NewClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	return &Client{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// ClassifyEmail asks the model to categorize the email. Only the
// bounded excerpt travels in the prompt.
func (c *Client) ClassifyEmail(ctx context.Context, email *core.EmailInput) (*core.AIClassification, error) {
	prompt := llm.BuildPrompt(email)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llm.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, &core.AIError{
			Op:        "openai",
			Attempts:  1,
			Retryable: isTransient(err),
			Err:       fmt.Errorf("chat completion failed: %w", err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &core.AIError{Op: "openai", Attempts: 1, Err: fmt.Errorf("empty response")}
	}

	result, err := llm.ParseResponse(resp.Choices[0].Message.Content, c.modelName, resp.ID)
	if err != nil {
		return nil, &core.AIError{Op: "openai", Attempts: 1, Err: err}
	}

	c.logger.Debug("OpenAI classification",
		zap.String("email_id", email.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// isTransient reports whether the API error is a rate limit or server
// error worth retrying.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeouts, connection resets) arrive
	// untyped and are retryable.
	return true
}

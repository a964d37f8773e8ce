package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/llm"
)

// Client implements the LLMClassifier interface using Google Gemini.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewClient creates a new Gemini-backed classifier.
func NewClient(
	client *genai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Client{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}
}

// ClassifyEmail asks the model to categorize the email.
func (c *Client) ClassifyEmail(ctx context.Context, email *core.EmailInput) (*core.AIClassification, error) {
	prompt := llm.SystemPrompt + "\n\n" + llm.BuildPrompt(email)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, &core.AIError{
			Op:        "gemini",
			Attempts:  1,
			Retryable: true,
			Err:       fmt.Errorf("generate content failed: %w", err),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &core.AIError{Op: "gemini", Attempts: 1, Err: fmt.Errorf("empty response")}
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	result, err := llm.ParseResponse(text, c.modelName, "")
	if err != nil {
		return nil, &core.AIError{Op: "gemini", Attempts: 1, Err: err}
	}

	c.logger.Debug("Gemini classification",
		zap.String("email_id", email.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/llm"
)

// Client implements the LLMClassifier interface using Anthropic
// models on Amazon Bedrock.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new Bedrock-backed classifier.
func NewClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Client {
	return &Client{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

type claudeRequest struct {
	Prompt            string  `json:"prompt"`
	MaxTokensToSample int     `json:"max_tokens_to_sample"`
	Temperature       float32 `json:"temperature"`
	TopP              float32 `json:"top_p"`
}

type claudeResponse struct {
	Completion string `json:"completion"`
}

// ClassifyEmail asks the model to categorize the email.
func (c *Client) ClassifyEmail(ctx context.Context, email *core.EmailInput) (*core.AIClassification, error) {
	prompt := fmt.Sprintf("\n\nHuman: %s\n\n%s\n\nAssistant:", llm.SystemPrompt, llm.BuildPrompt(email))

	body, err := json.Marshal(claudeRequest{
		Prompt:            prompt,
		MaxTokensToSample: c.maxTokens,
		Temperature:       c.temperature,
		TopP:              c.topP,
	})
	if err != nil {
		return nil, &core.AIError{Op: "bedrock", Attempts: 1, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		// Bedrock failures here are throttling or service errors;
		// both are transient.
		return nil, &core.AIError{
			Op:        "bedrock",
			Attempts:  1,
			Retryable: true,
			Err:       fmt.Errorf("invoke model failed: %w", err),
		}
	}

	var completion claudeResponse
	if err := json.Unmarshal(resp.Body, &completion); err != nil {
		return nil, &core.AIError{Op: "bedrock", Attempts: 1, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	result, err := llm.ParseResponse(completion.Completion, c.modelID, "")
	if err != nil {
		return nil, &core.AIError{Op: "bedrock", Attempts: 1, Err: err}
	}

	c.logger.Debug("Bedrock classification",
		zap.String("email_id", email.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

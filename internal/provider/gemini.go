package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"scribe/internal/logging"
)

// GeminiClient implements Generator on the Google GenAI API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiClient creates a Gemini-backed generator.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model, maxTokens: maxTokens}, nil
}

// Generate sends one prompt and returns the completion text.
func (c *GeminiClient) Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error) {
	if maxTokens <= 0 || maxTokens > c.maxTokens {
		maxTokens = c.maxTokens
	}

	user := prompt
	if contextText != "" {
		user = contextText + "\n\n" + prompt
	}

	logging.ProviderDebug("[gemini] generate: model=%s prompt_len=%d max_tokens=%d",
		c.model, len(user), maxTokens)

	result, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(user),
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(maxTokens),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	logging.ProviderDebug("[gemini] generate: response_len=%d", len(text))
	return text, nil
}

// Name identifies this provider in errors and cooldown bookkeeping.
func (c *GeminiClient) Name() string {
	return "gemini:" + c.model
}

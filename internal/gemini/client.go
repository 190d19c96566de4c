package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var errEmptyResponse = errors.New("empty response from gemini")

// Client wraps the Gemini API client. It serves both as a text reasoner and as
// the vision capability.
type Client struct {
	client      *genai.Client
	logger      *zap.Logger
	modelName   string
	visionModel string
	maxRetries  int
	retryDelay  time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey      string
	ModelName   string // Default: "gemini-2.0-flash"
	VisionModel string // Defaults to ModelName
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.ModelName
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.String("vision_model", cfg.VisionModel),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:      client,
		logger:      logger,
		modelName:   cfg.ModelName,
		visionModel: cfg.VisionModel,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends userText under systemInstruction and returns the raw answer.
// JSON output is requested but not parsed here.
func (c *Client) Generate(ctx context.Context, systemInstruction, userText string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2), // Lower for consistent moderation
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](600),
	}

	return c.generateWithRetry(ctx, model, genai.Text(userText))
}

// Describe sends an inline image with prompt and returns the description
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	model := c.client.GenerativeModel(c.visionModel)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: genai.Ptr[int32](800),
	}

	return c.generateWithRetry(ctx, model,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(prompt),
	)
}

func (c *Client) generateWithRetry(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))

			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			if ctx.Err() != nil {
				return "", lastErr
			}
			continue
		}

		text, err := responseText(resp)
		if err != nil {
			lastErr = err
			c.logger.Error("Unusable Gemini response", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		return text, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from gemini")
	}
	return b.String(), nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":     "gemini",
		"model":        c.modelName,
		"vision_model": c.visionModel,
		"max_retries":  c.maxRetries,
		"retry_delay":  c.retryDelay.String(),
	}
}

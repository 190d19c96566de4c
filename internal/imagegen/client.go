package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"moderation-service/internal/models"
)

// ErrNoImage is returned when the model produced no usable image
var ErrNoImage = errors.New("no image generated")

const defaultMIMEType = "image/png"

// Client generates replacement images through the Imagen models of the Gemini API
type Client struct {
	client     *genai.Client
	logger     *zap.Logger
	modelName  string
	mimeType   string
	maxRetries int
	retryDelay time.Duration
}

// Config for the image generation client
type Config struct {
	APIKey     string
	ModelName  string // Default: "imagen-3.0-generate-002"
	MIMEType   string
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new image generation client
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("image generation API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "imagen-3.0-generate-002"
	}

	if cfg.MIMEType == "" {
		cfg.MIMEType = defaultMIMEType
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger.Info("Image generation client initialized",
		zap.String("model", cfg.ModelName),
		zap.String("mime_type", cfg.MIMEType))

	return &Client{
		client:     client,
		logger:     logger,
		modelName:  cfg.ModelName,
		mimeType:   cfg.MIMEType,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// GenerateImage renders a single image for prompt
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*models.GeneratedImage, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.client.Models.GenerateImages(ctx, c.modelName, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
			OutputMIMEType: c.mimeType,
		})
		if err != nil {
			lastErr = fmt.Errorf("image generation failed: %w", err)
			c.logger.Warn("Image generation attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		// A filtered or empty answer will not change on retry
		return FirstImage(resp, c.mimeType)
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// FirstImage extracts the first image carrying bytes or a storage URI
func FirstImage(resp *genai.GenerateImagesResponse, fallbackMIME string) (*models.GeneratedImage, error) {
	if resp == nil {
		return nil, ErrNoImage
	}

	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil {
			continue
		}

		img := generated.Image
		if len(img.ImageBytes) == 0 && img.GCSURI == "" {
			continue
		}

		mimeType := img.MIMEType
		if mimeType == "" {
			mimeType = fallbackMIME
		}

		return &models.GeneratedImage{
			URL:      img.GCSURI,
			Data:     img.ImageBytes,
			MIMEType: mimeType,
		}, nil
	}

	return nil, ErrNoImage
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":  "imagen",
		"model":     c.modelName,
		"mime_type": c.mimeType,
	}
}

package analysis

import (
	"context"
	"errors"
	"fmt"

	"moderation-service/internal/models"

	"go.uber.org/zap"
)

// ErrEmptyPrompt is returned when sanitization leaves nothing to generate from
var ErrEmptyPrompt = errors.New("sanitized prompt is empty")

// ReplacementGenerator produces safe replacement images from submission text
type ReplacementGenerator struct {
	generator Generator
	logger    *zap.Logger
}

// NewReplacementGenerator creates a replacement generator
func NewReplacementGenerator(generator Generator, logger *zap.Logger) *ReplacementGenerator {
	return &ReplacementGenerator{generator: generator, logger: logger}
}

// Generate sanitizes text and requests a replacement image. A nil image with an
// error means "not replaced".
func (g *ReplacementGenerator) Generate(ctx context.Context, text string) (*models.GeneratedImage, error) {
	if SanitizeText(text) == "" {
		return nil, ErrEmptyPrompt
	}

	prompt := SanitizePrompt(text)
	img, err := g.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if img == nil || (img.URL == "" && len(img.Data) == 0) {
		return nil, errors.New("image generation returned no image")
	}

	out := *img
	if out.URL == "" {
		if out.MIMEType == "" {
			out.MIMEType = "image/png"
		}
		out.URL = EncodeDataURL(out.Data, out.MIMEType)
	}

	g.logger.Debug("Replacement image generated",
		zap.Int("bytes", len(out.Data)),
		zap.String("mime_type", out.MIMEType))

	return &out, nil
}

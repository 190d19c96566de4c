// Package analysis adapts the external reasoning, vision and image generation
// services into typed moderation findings. Untyped service output never
// leaves this package: every response is normalized here or replaced with a
// documented default.
package analysis

import (
	"context"

	"moderation-service/internal/models"
)

// Reasoner is a text reasoning capability. Its output is expected to embed JSON.
type Reasoner interface {
	Generate(ctx context.Context, systemInstruction, userText string) (string, error)
}

// Vision describes an image supplied as inline bytes
type Vision interface {
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Generator produces an image from an already sanitized prompt
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (*models.GeneratedImage, error)
}

package analysis_test

import (
	"context"

	"moderation-service/internal/models"
)

type fakeReasoner struct {
	response string
	err      error

	gotSystem string
	gotUser   string
}

func (f *fakeReasoner) Generate(_ context.Context, systemInstruction, userText string) (string, error) {
	f.gotSystem = systemInstruction
	f.gotUser = userText
	return f.response, f.err
}

type fakeVision struct {
	description string
	err         error

	gotImage []byte
	gotMIME  string
}

func (f *fakeVision) Describe(_ context.Context, _ string, image []byte, mimeType string) (string, error) {
	f.gotImage = image
	f.gotMIME = mimeType
	return f.description, f.err
}

type fakeGenerator struct {
	image *models.GeneratedImage
	err   error

	gotPrompt string
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt string) (*models.GeneratedImage, error) {
	f.gotPrompt = prompt
	return f.image, f.err
}

// pngHeader is enough for http.DetectContentType to report image/png
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

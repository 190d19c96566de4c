package pipeline_test

import (
	"context"
	"sync"

	"moderation-service/internal/analysis"
	"moderation-service/internal/models"
)

// routedReasoner answers text analysis and decision requests separately
type routedReasoner struct {
	text       string
	textErr    error
	verdict    string
	verdictErr error

	mu          sync.Mutex
	decisionReq []string
}

func (r *routedReasoner) Generate(_ context.Context, systemInstruction, userText string) (string, error) {
	if systemInstruction == analysis.TextSystemInstruction {
		return r.text, r.textErr
	}

	r.mu.Lock()
	r.decisionReq = append(r.decisionReq, userText)
	r.mu.Unlock()
	return r.verdict, r.verdictErr
}

// sequenceVision returns descriptions in call order, repeating the last one
type sequenceVision struct {
	descriptions []string
	err          error
	calls        int
}

func (v *sequenceVision) Describe(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	v.calls++
	if v.err != nil {
		return "", v.err
	}
	if len(v.descriptions) == 0 {
		return "", nil
	}
	i := v.calls - 1
	if i >= len(v.descriptions) {
		i = len(v.descriptions) - 1
	}
	return v.descriptions[i], nil
}

type fakeGenerator struct {
	image *models.GeneratedImage
	err   error
	calls int
}

func (g *fakeGenerator) GenerateImage(_ context.Context, _ string) (*models.GeneratedImage, error) {
	g.calls++
	return g.image, g.err
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func pngImage() *models.GeneratedImage {
	return &models.GeneratedImage{Data: pngHeader, MIMEType: "image/png"}
}

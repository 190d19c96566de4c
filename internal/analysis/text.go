package analysis

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Sentinel summaries for degraded text analysis
const (
	TextParseErrorSummary  = "Error parsing text analysis response"
	TextUnavailableSummary = "Text analysis unavailable"
)

// defaultToxicity is used when the reasoner's answer cannot be read
const defaultToxicity = 0.5

// TextFindings is the normalized text analysis output
type TextFindings struct {
	Toxicity float64
	NSFWText bool
	Summary  string
}

type textResponse struct {
	Toxicity flexFloat `json:"toxicity"`
	NSFWText flexBool  `json:"nsfwText"`
	Summary  string    `json:"summary"`
}

// TextAnalyzer scores submission text through a Reasoner
type TextAnalyzer struct {
	reasoner Reasoner
	logger   *zap.Logger
}

// NewTextAnalyzer creates a text analyzer
func NewTextAnalyzer(reasoner Reasoner, logger *zap.Logger) *TextAnalyzer {
	return &TextAnalyzer{reasoner: reasoner, logger: logger}
}

// Analyze scores text. It fails only when the reasoner cannot be reached; a
// malformed answer yields the conservative default findings.
func (a *TextAnalyzer) Analyze(ctx context.Context, text string) (TextFindings, error) {
	raw, err := a.reasoner.Generate(ctx, TextSystemInstruction, text)
	if err != nil {
		return TextFindings{}, fmt.Errorf("text analysis request failed: %w", err)
	}

	fallback := textResponse{
		Toxicity: flexFloat{Value: defaultToxicity, Set: true},
		Summary:  TextParseErrorSummary,
	}
	resp, parseErr := ParseWithFallback(raw, fallback)
	if parseErr != nil {
		a.logger.Warn("Failed to parse text analysis response, using defaults",
			zap.Error(parseErr),
			zap.String("raw_response", raw))
	}

	toxicity := defaultToxicity
	if resp.Toxicity.Set {
		toxicity = resp.Toxicity.Value
	}

	return TextFindings{
		Toxicity: ClampScore(toxicity),
		NSFWText: bool(resp.NSFWText),
		Summary:  resp.Summary,
	}, nil
}

// ClampScore forces v into [0,1]. NaN maps to the conservative default.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return defaultToxicity
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

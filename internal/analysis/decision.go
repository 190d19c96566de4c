package analysis

import (
	"context"
	"fmt"

	"moderation-service/internal/models"

	"go.uber.org/zap"
)

// DecisionUnavailableSummary is reported when no verdict could be obtained
const DecisionUnavailableSummary = "Automated decision unavailable; manual review required"

// DecisionFindings is the normalized verdict of the decision capability
type DecisionFindings struct {
	Decision  models.Status
	Summary   string
	NSFWImage bool
	Violence  bool
}

// UnavailableDecision is the conservative verdict used when the decision
// capability fails or answers with something unreadable.
func UnavailableDecision() DecisionFindings {
	return DecisionFindings{
		Decision: models.StatusFlagged,
		Summary:  DecisionUnavailableSummary,
	}
}

type decisionResponse struct {
	Decision  string   `json:"decision"`
	Summary   string   `json:"summary"`
	NSFWImage flexBool `json:"nsfwImage"`
	Violence  flexBool `json:"violence"`
}

// Decider asks a Reasoner for the overall verdict
type Decider struct {
	reasoner Reasoner
	logger   *zap.Logger
}

// NewDecider creates a decider
func NewDecider(reasoner Reasoner, logger *zap.Logger) *Decider {
	return &Decider{reasoner: reasoner, logger: logger}
}

// Decide returns the verdict for the gathered signals. Transport failures are
// returned; parse failures and out-of-range verdicts degrade to flagged.
func (d *Decider) Decide(ctx context.Context, in DecisionInput) (DecisionFindings, error) {
	raw, err := d.reasoner.Generate(ctx, DecisionSystemInstruction, BuildDecisionPrompt(in))
	if err != nil {
		return UnavailableDecision(), fmt.Errorf("decision request failed: %w", err)
	}

	resp, parseErr := ParseWithFallback(raw, decisionResponse{})
	if parseErr != nil {
		d.logger.Warn("Failed to parse decision response, flagging for review",
			zap.Error(parseErr),
			zap.String("raw_response", raw))
		return UnavailableDecision(), nil
	}

	decision, ok := models.ParseDecision(resp.Decision)
	if !ok {
		d.logger.Warn("Decision outside allowed values, flagging for review",
			zap.String("decision", resp.Decision))
		decision = models.StatusFlagged
	}

	return DecisionFindings{
		Decision:  decision,
		Summary:   resp.Summary,
		NSFWImage: bool(resp.NSFWImage),
		Violence:  bool(resp.Violence),
	}, nil
}

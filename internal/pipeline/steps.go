package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"moderation-service/internal/analysis"
	"moderation-service/internal/models"
)

// Step names in execution order
const (
	StepImageAnalysis         = "image_analysis"
	StepTextAnalysis          = "text_analysis"
	StepDecision              = "decision"
	StepReplacementEvaluation = "replacement_evaluation"
	StepImageGeneration       = "image_generation"
	StepReanalysis            = "re_analysis"
)

// ReplacementToxicityCeiling is the toxicity at or above which an image
// replacement is not attempted: substituting the image cannot rescue the text.
const ReplacementToxicityCeiling = 0.7

// Capabilities are the analysis adapters the default steps call
type Capabilities struct {
	Images   *analysis.ImageAnalyzer
	Text     *analysis.TextAnalyzer
	Decider  *analysis.Decider
	Replacer *analysis.ReplacementGenerator
	Harm     *analysis.HarmScanner
}

// DefaultSteps builds the moderation step sequence. With ReanalyzeGenerated
// off, a generated image is accepted without a second look.
func DefaultSteps(caps Capabilities, cfg Config, logger *zap.Logger) []Step {
	if caps.Harm == nil {
		caps.Harm = analysis.NewHarmScanner(nil)
	}

	s := &steps{caps: caps, logger: logger}

	out := []Step{
		{Name: StepImageAnalysis, Run: s.imageAnalysis},
		{Name: StepTextAnalysis, Run: s.textAnalysis},
		{Name: StepDecision, Run: s.decision},
		{Name: StepReplacementEvaluation, Run: evaluateReplacement},
		{Name: StepImageGeneration, Run: s.imageGeneration},
	}

	if cfg.ReanalyzeGenerated {
		out = append(out, Step{Name: StepReanalysis, Run: s.reanalysis})
	} else {
		out = append(out, Step{Name: StepReanalysis, Run: acceptGenerated})
	}
	return out
}

type steps struct {
	caps   Capabilities
	logger *zap.Logger
}

func (s *steps) imageAnalysis(ctx context.Context, rec models.Record) (models.Record, error) {
	if !rec.HasImage() {
		return rec, nil
	}

	rec.ImageDescription = s.caps.Images.Describe(ctx, rec.ImageURL)
	if analysis.IsFailedDescription(rec.ImageDescription) {
		rec = rec.WithDiagnostic(models.StepDiagnostic{
			Step:    StepImageAnalysis,
			Message: analysis.ImageAnalysisFailed,
		})
	}
	return rec, nil
}

func (s *steps) textAnalysis(ctx context.Context, rec models.Record) (models.Record, error) {
	if !rec.HasText() {
		return rec, nil
	}

	findings, err := s.caps.Text.Analyze(ctx, rec.TextContent)
	if err != nil {
		s.logger.Warn("Text analysis unavailable",
			zap.String("submission_id", rec.SubmissionID),
			zap.Error(err))

		rec.TextSummary = analysis.TextUnavailableSummary
		return rec.WithDiagnostic(models.StepDiagnostic{Step: StepTextAnalysis, Message: err.Error()}), nil
	}

	rec.Toxicity = findings.Toxicity
	rec.NSFWText = findings.NSFWText
	rec.TextSummary = findings.Summary
	return rec, nil
}

func (s *steps) decision(ctx context.Context, rec models.Record) (models.Record, error) {
	findings, err := s.caps.Decider.Decide(ctx, analysis.DecisionInput{
		SubmissionType:   string(rec.Type),
		TextContent:      rec.TextContent,
		ImageDescription: rec.ImageDescription,
		Toxicity:         rec.Toxicity,
		NSFWText:         rec.NSFWText,
		TextSummary:      rec.TextSummary,
	})
	if err != nil {
		s.logger.Warn("Decision unavailable, flagging for review",
			zap.String("submission_id", rec.SubmissionID),
			zap.Error(err))
		rec = rec.WithDiagnostic(models.StepDiagnostic{Step: StepDecision, Message: err.Error()})
	}

	rec.Decision = findings.Decision
	rec.Summary = findings.Summary
	rec.NSFWImage = findings.NSFWImage
	rec.Violence = findings.Violence
	return rec, nil
}

func evaluateReplacement(_ context.Context, rec models.Record) (models.Record, error) {
	if !rec.HasImage() {
		return rec, nil
	}

	rec.ShouldReplaceImage = (rec.NSFWImage || rec.Violence) && rec.Toxicity < ReplacementToxicityCeiling
	return rec, nil
}

func (s *steps) imageGeneration(ctx context.Context, rec models.Record) (models.Record, error) {
	if !rec.ShouldReplaceImage || !rec.HasText() {
		return rec, nil
	}
	if s.caps.Replacer == nil {
		rec.ShouldReplaceImage = false
		return rec, nil
	}

	img, err := s.caps.Replacer.Generate(ctx, rec.TextContent)
	if err != nil {
		s.logger.Warn("Replacement image not generated, keeping original",
			zap.String("submission_id", rec.SubmissionID),
			zap.Error(err))

		rec.ShouldReplaceImage = false
		rec.Generated = nil
		return rec.WithDiagnostic(models.StepDiagnostic{Step: StepImageGeneration, Message: err.Error()}), nil
	}

	rec.Generated = img
	return rec, nil
}

func (s *steps) reanalysis(ctx context.Context, rec models.Record) (models.Record, error) {
	if rec.Generated == nil {
		return rec, nil
	}

	desc := s.caps.Images.Describe(ctx, rec.Generated.URL)
	if analysis.IsFailedDescription(desc) {
		s.logger.Warn("Generated image could not be verified, discarding",
			zap.String("submission_id", rec.SubmissionID))
		return discardGenerated(rec, "generated image could not be analyzed"), nil
	}

	if markers := s.caps.Harm.Scan(desc); len(markers) > 0 {
		s.logger.Warn("Generated image failed re-analysis, discarding",
			zap.String("submission_id", rec.SubmissionID),
			zap.Strings("markers", markers))
		return discardGenerated(rec, "generated image rejected: "+strings.Join(markers, ", ")), nil
	}

	return acceptGenerated(ctx, rec)
}

// acceptGenerated marks the replacement as applied and clears the image flags
// it remedies.
func acceptGenerated(_ context.Context, rec models.Record) (models.Record, error) {
	if rec.Generated == nil {
		return rec, nil
	}

	rec.PreReplacementNSFWImage = rec.NSFWImage
	rec.PreReplacementViolence = rec.Violence
	rec.ImageReplacedByAI = true
	rec.NSFWImage = false
	rec.Violence = false
	return rec, nil
}

func discardGenerated(rec models.Record, reason string) models.Record {
	rec.ShouldReplaceImage = false
	rec.Generated = nil
	return rec.WithDiagnostic(models.StepDiagnostic{Step: StepReanalysis, Message: reason})
}

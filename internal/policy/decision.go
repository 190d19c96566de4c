// Package policy maps accumulated moderation findings to a final verdict and
// its human-readable reasoning. Everything here is a pure function.
package policy

import (
	"fmt"
	"strings"

	"moderation-service/internal/models"
)

// Thresholds applied once an image has been replaced
const (
	ApproveBelow      = 0.3
	RejectAbove       = 0.7
	RejectIssuesAbove = 0.5
)

// FinalStatus returns the verdict for rec. Without a replacement it is the base
// decision (approved if none was computed). With a replacement the base decision
// was made against the discarded image, so the status is recomputed from
// toxicity and residual flags only.
func FinalStatus(rec models.Record) models.Status {
	if !rec.ImageReplacedByAI {
		return rec.EffectiveDecision()
	}
	return Override(rec.Toxicity, rec.HasIssues())
}

// Override computes the post-replacement status
func Override(toxicity float64, hasIssues bool) models.Status {
	switch {
	case toxicity < ApproveBelow && !hasIssues:
		return models.StatusApproved
	case toxicity > RejectAbove || (hasIssues && toxicity > RejectIssuesAbove):
		return models.StatusRejected
	default:
		return models.StatusFlagged
	}
}

// TechnicalAnalysisOf extracts the reported findings from rec
func TechnicalAnalysisOf(rec models.Record) models.TechnicalAnalysis {
	return models.TechnicalAnalysis{
		Toxicity:          rec.Toxicity,
		NSFWText:          rec.NSFWText,
		NSFWImage:         rec.NSFWImage,
		Violence:          rec.Violence,
		ImageReplacedByAI: rec.ImageReplacedByAI,
		ImageDescription:  rec.ImageDescription,
		TextSummary:       rec.TextSummary,
		GeneratedImageURL: rec.GeneratedImageURL(),
	}
}

// Finalize computes status, reasoning and findings for a terminal record
func Finalize(rec models.Record) models.ModerationResult {
	status := FinalStatus(rec)
	analysis := TechnicalAnalysisOf(rec)

	return models.ModerationResult{
		SubmissionID:      rec.SubmissionID,
		Status:            status,
		Summary:           rec.Summary,
		Reasoning:         BuildReasoning(status, analysis),
		TechnicalAnalysis: analysis,
		Diagnostics:       rec.Diagnostics,
	}
}

var reasoningPrefix = map[models.Status]string{
	models.StatusApproved: "Content approved:",
	models.StatusFlagged:  "Content flagged for review:",
	models.StatusRejected: "Content rejected:",
}

// BuildReasoning renders the explanation for status from the findings.
// Only truthy findings are listed; with none the prefix is returned alone.
func BuildReasoning(status models.Status, analysis models.TechnicalAnalysis) string {
	prefix, ok := reasoningPrefix[status]
	if !ok {
		prefix = reasoningPrefix[models.StatusFlagged]
	}

	var findings []string
	if analysis.Toxicity > 0 {
		findings = append(findings, fmt.Sprintf("Toxicity: %.1f%%", analysis.Toxicity*100))
	}
	if analysis.NSFWText {
		findings = append(findings, "NSFW text detected")
	}
	if analysis.NSFWImage {
		findings = append(findings, "NSFW image detected")
	}
	if analysis.Violence {
		findings = append(findings, "Violence detected")
	}
	if analysis.ImageReplacedByAI {
		findings = append(findings, "Image replaced with AI-generated alternative")
	}

	if len(findings) == 0 {
		return prefix
	}
	return prefix + " " + strings.Join(findings, ", ")
}

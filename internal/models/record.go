package models

import "slices"

// Record is the moderation state threaded through the pipeline.
// It is passed by value; steps return an updated copy and never mutate their input.
// Empty strings mean "absent".
type Record struct {
	SubmissionID string
	Type         SubmissionType
	TextContent  string
	ImageURL     string

	ImageDescription string

	Toxicity    float64
	NSFWText    bool
	TextSummary string

	NSFWImage bool
	Violence  bool
	Decision  Status
	Summary   string

	ShouldReplaceImage bool
	Generated          *GeneratedImage
	ImageReplacedByAI  bool

	// Flags as they stood before an accepted replacement cleared them
	PreReplacementNSFWImage bool
	PreReplacementViolence  bool

	Diagnostics []StepDiagnostic
}

// GeneratedImage is a replacement image produced by the generation capability.
// Data is set when the provider returns inline bytes; URL is always set
// (a data: URL for inline images).
type GeneratedImage struct {
	URL      string
	Data     []byte
	MIMEType string
}

// StepDiagnostic records a contained step failure
type StepDiagnostic struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// NewRecord builds the initial record for a submission
func NewRecord(sub *Submission) Record {
	rec := Record{
		SubmissionID: sub.ID,
		Type:         sub.Type,
	}
	if sub.TextContent != nil {
		rec.TextContent = *sub.TextContent
	}
	if sub.ImageURL != nil {
		rec.ImageURL = *sub.ImageURL
	}
	return rec
}

// HasText reports whether text was submitted
func (r Record) HasText() bool {
	return r.TextContent != ""
}

// HasImage reports whether an image is attached
func (r Record) HasImage() bool {
	return r.ImageURL != ""
}

// GeneratedImageURL returns the replacement image URL, or "" if none
func (r Record) GeneratedImageURL() string {
	if r.Generated == nil {
		return ""
	}
	return r.Generated.URL
}

// EffectiveDecision returns the decision, defaulting to approved when the
// decision step never ran.
func (r Record) EffectiveDecision() Status {
	if r.Decision == "" {
		return StatusApproved
	}
	return r.Decision
}

// HasIssues reports whether any content flag is raised
func (r Record) HasIssues() bool {
	return r.NSFWText || r.NSFWImage || r.Violence
}

// WithDiagnostic returns a copy of r with d appended
func (r Record) WithDiagnostic(d StepDiagnostic) Record {
	r.Diagnostics = append(slices.Clone(r.Diagnostics), d)
	return r
}

// WithoutReplacement undoes an accepted replacement, restoring the image flags
// the replacement had cleared.
func (r Record) WithoutReplacement() Record {
	if r.ImageReplacedByAI {
		r.NSFWImage = r.PreReplacementNSFWImage
		r.Violence = r.PreReplacementViolence
	}
	r.ImageReplacedByAI = false
	r.ShouldReplaceImage = false
	r.Generated = nil
	r.PreReplacementNSFWImage = false
	r.PreReplacementViolence = false
	return r
}

// TechnicalAnalysis is the structured finding set reported with a verdict
type TechnicalAnalysis struct {
	Toxicity          float64 `json:"toxicity"`
	NSFWText          bool    `json:"nsfw_text"`
	NSFWImage         bool    `json:"nsfw_image"`
	Violence          bool    `json:"violence"`
	ImageReplacedByAI bool    `json:"image_replaced_by_ai"`
	ImageDescription  string  `json:"image_description,omitempty"`
	TextSummary       string  `json:"text_summary,omitempty"`
	GeneratedImageURL string  `json:"generated_image_url,omitempty"`
}

// ModerationResult is returned to callers of a synchronous run
type ModerationResult struct {
	SubmissionID      string            `json:"submission_id"`
	Status            Status            `json:"status"`
	Summary           string            `json:"summary"`
	Reasoning         string            `json:"reasoning"`
	TechnicalAnalysis TechnicalAnalysis `json:"technical_analysis"`
	Diagnostics       []StepDiagnostic  `json:"diagnostics,omitempty"`
}

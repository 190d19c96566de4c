package models

import (
	"strings"
	"time"
)

// SubmissionType is the kind of content a user submitted
type SubmissionType string

const (
	SubmissionText  SubmissionType = "text"
	SubmissionImage SubmissionType = "image"
)

// Valid reports whether t is a known submission type
func (t SubmissionType) Valid() bool {
	return t == SubmissionText || t == SubmissionImage
}

// Status is the moderation disposition of a submission
type Status string

const (
	StatusPending  Status = "pending" // never moderated
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusRejected Status = "rejected"
)

// ParseDecision maps a capability verdict onto the decision enum.
// Anything outside approved/flagged/rejected is reported as not ok.
func ParseDecision(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusApproved, StatusFlagged, StatusRejected:
		return status, true
	default:
		return "", false
	}
}

// Stage is the coarse progress marker of a moderation run, distinct from Status
type Stage string

const (
	StageQueued                  Stage = "queued"
	StageAnalyzing               Stage = "analyzing"
	StageRunningModeration       Stage = "running_moderation"
	StageUploadingGeneratedImage Stage = "uploading_generated_image"
	StageFinalizing              Stage = "finalizing"
	StageCompleted               Stage = "completed"
	StageError                   Stage = "error"
)

var stageOrder = map[Stage]int{
	StageQueued:                  1,
	StageAnalyzing:               2,
	StageRunningModeration:       3,
	StageUploadingGeneratedImage: 4,
	StageFinalizing:              5,
	StageCompleted:               6,
}

// Precedes reports whether moving from s to next advances the run.
// StageError is reachable from every non-terminal stage.
func (s Stage) Precedes(next Stage) bool {
	if s == StageCompleted || s == StageError {
		return false
	}
	if next == StageError {
		return true
	}
	return stageOrder[next] > stageOrder[s]
}

// Submission is the stored unit of content awaiting or holding a verdict
type Submission struct {
	ID                string         `json:"id" db:"id"`
	Type              SubmissionType `json:"submission_type" db:"submission_type"`
	TextContent       *string        `json:"text_content,omitempty" db:"text_content"`
	ImageURL          *string        `json:"image_url,omitempty" db:"image_url"`
	OriginalImageURL  *string        `json:"original_image_url,omitempty" db:"original_image_url"`
	ImageDescription  *string        `json:"image_description,omitempty" db:"image_description"`
	Status            Status         `json:"status" db:"status"`
	Stage             *Stage         `json:"stage,omitempty" db:"stage"`
	Summary           *string        `json:"summary,omitempty" db:"summary"`
	Reasoning         *string        `json:"reasoning,omitempty" db:"reasoning"`
	Toxicity          *float64       `json:"toxicity,omitempty" db:"toxicity"`
	NSFWText          bool           `json:"nsfw_text" db:"nsfw_text"`
	NSFWImage         bool           `json:"nsfw_image" db:"nsfw_image"`
	Violence          bool           `json:"violence" db:"violence"`
	ImageReplacedByAI bool           `json:"image_replaced_by_ai" db:"image_replaced_by_ai"`
	TechnicalAnalysis *string        `json:"technical_analysis,omitempty" db:"technical_analysis"` // JSON
	ErrorMessage      *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// SubmissionUpdate is a partial update. Nil fields are left untouched.
type SubmissionUpdate struct {
	Stage             *Stage
	Status            *Status
	ImageURL          *string
	OriginalImageURL  *string
	ImageDescription  *string
	Summary           *string
	Reasoning         *string
	Toxicity          *float64
	NSFWText          *bool
	NSFWImage         *bool
	Violence          *bool
	ImageReplacedByAI *bool
	TechnicalAnalysis *string
	ErrorMessage      *string
	CompletedAt       *time.Time
}

// CreateSubmissionRequest is the body accepted when a submission is created
type CreateSubmissionRequest struct {
	TextContent string `json:"text_content"`
	ImageURL    string `json:"image_url"`
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

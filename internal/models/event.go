package models

import "time"

// StageEvent announces a stage transition of a moderation run
type StageEvent struct {
	SubmissionID string    `json:"submission_id"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

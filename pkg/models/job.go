package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusSubmitted  = "submitted"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one uploaded clip through the reaction pipeline. The API returns a job_id on
// POST /upload; the client polls GET /status/{job_id} until status is completed or failed.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"job_id"`
	Status       string          `db:"status"        json:"status"`
	Voice        string          `db:"voice"         json:"voice,omitempty"`
	InputFile    string          `db:"input_file"    json:"-"`
	Result       *ReactionResult `db:"result"        json:"result,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error,omitempty"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

// ReactionResult is the payload of a completed job.
type ReactionResult struct {
	Transcript     string  `json:"transcript"`
	Emotion        string  `json:"emotion"`
	ReactionText   string  `json:"reaction_text"`
	AudioFile      string  `json:"audio_file"`
	AudioURL       string  `json:"audio_url"`
	ProcessingTime float64 `json:"processing_time"`
	InputDuration  float64 `json:"input_duration,omitempty"`
}

// IsTerminal reports whether status is completed or failed.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// StatusRank orders statuses along the job lifecycle. Unknown statuses rank -1.
func StatusRank(status string) int {
	switch status {
	case JobStatusSubmitted:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

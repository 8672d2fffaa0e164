package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload names the inputs of one translation job. VideoFile triggers
// speech recognition first; SubtitleFile alone translates directly.
type JobPayload struct {
	VideoFile    string `json:"video_file"`
	SubtitleFile string `json:"subtitle_file"`
}

type TranslationJob struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	DedupeKey  string     `json:"dedupe_key"`
	Payload    JobPayload `json:"payload"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	OutputPath string     `json:"output_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

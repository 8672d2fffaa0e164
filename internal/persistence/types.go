package persistence

import "time"

// BatchCheckpoint is one saved batch translation, keyed by the cue range
// it covers. A retried job reloads these instead of calling the model again.
type BatchCheckpoint struct {
	JobID           string
	BatchStart      int
	BatchEnd        int
	TranslatedLines []string
	UpdatedAt       time.Time
}

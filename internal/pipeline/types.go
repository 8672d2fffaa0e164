package pipeline

import (
	"context"

	"golang.org/x/text/language"
)

// State tracks one run through the pipeline.
type State string

const (
	StatePending     State = "pending"
	StateParsing     State = "parsing"
	StateTranslating State = "translating"
	StateWriting     State = "writing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// CueRange identifies a contiguous span of cue indices.
type CueRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Outcome is the terminal report of one run.
type Outcome struct {
	RunID      string
	State      State
	OutputPath string // set only on success
	Done       int    // translated cue count
	Total      int
	// FailedRange identifies the batch that exhausted retries, when
	// the run failed during translation.
	FailedRange *CueRange
}

// ProgressFunc receives completed/total cue counts after each batch.
type ProgressFunc func(done, total int)

// CheckpointStore persists completed batch translations so a retried
// run does not re-translate batches that already succeeded.
type CheckpointStore interface {
	Load(key string, start, end int) ([]string, bool)
	Save(ctx context.Context, key string, start, end int, translated []string) error
}

// RunOptions carries per-run collaborators.
type RunOptions struct {
	Progress ProgressFunc
	// CheckpointKey enables batch-result reuse under this key; empty
	// disables checkpointing.
	CheckpointKey string
}

// Config tunes the coordinator. Zero values use the defaults below.
type Config struct {
	TargetLanguage language.Tag
	MaxBatchChars  int
	MaxBatchLines  int
	// Concurrency bounds in-flight batches within one run. The local
	// inference server serves one request well at a time, so the
	// default is sequential.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.TargetLanguage == language.Und {
		c.TargetLanguage = language.SimplifiedChinese
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

package translator

import "fmt"

// AlignmentError reports a response whose line count or tags do not
// match the request. It is transient: the caller retries instead of
// guessing an alignment.
type AlignmentError struct {
	Want   int
	Got    int
	Detail string
}

func (e *AlignmentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("alignment mismatch: want %d lines, got %d: %s", e.Want, e.Got, e.Detail)
	}
	return fmt.Sprintf("alignment mismatch: want %d lines, got %d", e.Want, e.Got)
}

// BatchError is terminal: a batch could not be translated after
// exhausting retries. It carries the affected cue index range for
// diagnostics.
type BatchError struct {
	StartIndex int
	EndIndex   int
	Attempts   int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("translation failed for cues %d-%d after %d attempts: %v",
		e.StartIndex, e.EndIndex, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

package translator

import (
	"context"
	"time"

	"localsub/internal/subtitle"
)

// Translator turns a contiguous run of subtitle cues into translated
// texts, one per cue, in the same order.
type Translator interface {
	TranslateBatch(ctx context.Context, lines []subtitle.Line) ([]string, error)
}

// Options tunes the translation protocol. Zero values fall back to the
// defaults below.
type Options struct {
	SourceLanguage string
	TargetLanguage string

	// MaxRetries is the total attempt count per batch, including the
	// first try.
	MaxRetries int
	// BackoffBase is the delay before the second attempt; it doubles
	// each attempt up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// LineFallback retranslates a batch line by line after the batched
	// request exhausts its retries; single-line requests are slower but
	// immune to alignment drift.
	LineFallback bool
}

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 600 * time.Millisecond
	DefaultBackoffCap  = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = "Simplified Chinese"
	}
	if o.SourceLanguage == "" {
		o.SourceLanguage = "Japanese"
	}
	return o
}

// Package batch groups subtitle cues into translation-request sized
// chunks while preserving document order.
package batch

import (
	"unicode/utf8"

	"localsub/internal/subtitle"
)

// Batch is a contiguous run of cues sent in one translation request.
type Batch struct {
	Lines []subtitle.Line
	Chars int // cumulative rune count of the original texts
}

// Start returns the cue index of the first line in the batch.
func (b Batch) Start() int {
	if len(b.Lines) == 0 {
		return 0
	}
	return b.Lines[0].Index
}

// End returns the cue index of the last line in the batch.
func (b Batch) End() int {
	if len(b.Lines) == 0 {
		return 0
	}
	return b.Lines[len(b.Lines)-1].Index
}

// Split walks cues in order and accumulates them into batches, closing
// the current batch when adding the next cue would exceed maxChars or
// maxLines. A single cue longer than maxChars still forms its own
// batch; cues are never dropped or truncated. maxLines <= 0 disables
// the line-count bound.
func Split(lines []subtitle.Line, maxChars, maxLines int) []Batch {
	if len(lines) == 0 {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var batches []Batch
	current := Batch{}

	for _, line := range lines {
		// Runes, not bytes: a CJK subtitle would otherwise burn the
		// budget three times as fast.
		chars := utf8.RuneCountInString(line.Text)
		full := len(current.Lines) > 0 &&
			(current.Chars+chars > maxChars || (maxLines > 0 && len(current.Lines) >= maxLines))
		if full {
			batches = append(batches, current)
			current = Batch{}
		}
		current.Lines = append(current.Lines, line)
		current.Chars += chars
	}
	batches = append(batches, current)

	return batches
}

// DefaultMaxChars keeps one request safely inside the local model's
// context window, leaving headroom for the instruction prompt.
const DefaultMaxChars = 2000

// DefaultMaxLines bounds how many cues share one request; small local
// models drift on long tagged lists.
const DefaultMaxLines = 20

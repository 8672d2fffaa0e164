package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrIncompleteTranslation is returned when serialization is attempted
// while some cue still lacks a translation. Shipping a mixed-language
// document is never acceptable, so this is fatal for the run.
var ErrIncompleteTranslation = errors.New("incomplete translation")

// DefaultWriter is the default subtitle file writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write serializes the translated subtitle to path. The document is
// written to a temp file first and renamed into place, so a failed run
// never leaves a partial file behind.
func (w *DefaultWriter) Write(path string, subtitle *File) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".localsub-*.srt")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := serialize(tmp, subtitle); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

func serialize(out io.Writer, subtitle *File) error {
	writer := bufio.NewWriter(out)

	for _, line := range subtitle.Lines {
		if line.TranslatedText == "" && line.Text != "" {
			return fmt.Errorf("%w: cue %d has no translation", ErrIncompleteTranslation, line.Index)
		}

		fmt.Fprintf(writer, "%d\n", line.Index)
		fmt.Fprintf(writer, "%s --> %s\n", formatDuration(line.StartTime), formatDuration(line.EndTime))
		fmt.Fprintf(writer, "%s\n\n", line.TranslatedText)
	}

	return writer.Flush()
}

// formatDuration formats time.Duration to SRT time format
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}

package subtitle

import (
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read() (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single subtitle cue
type Line struct {
	Index          int           // cue index, 1-based, strictly increasing
	StartTime      time.Duration // start time from document start
	EndTime        time.Duration // end time from document start
	Text           string        // original text, may span multiple lines
	TranslatedText string        // translated text, empty until translated
}

// File represents a parsed subtitle document
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT
	Path     string // source path, empty when parsed from memory
}

// CharCount returns the total number of original characters (runes),
// used to size translation batches.
func (f *File) CharCount() int {
	total := 0
	for _, line := range f.Lines {
		total += utf8.RuneCountInString(line.Text)
	}
	return total
}

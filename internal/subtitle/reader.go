package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// MalformedError reports a subtitle document that cannot be parsed.
// Block is the 1-based position of the offending cue block.
type MalformedError struct {
	Block  int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed subtitle document: block %d: %s", e.Block, e.Reason)
}

// DefaultReader is the default subtitle file reader
type DefaultReader struct {
	path string
}

// NewReader creates a new subtitle file reader
func NewReader(path string) Reader {
	return &DefaultReader{
		path: path,
	}
}

// Read reads and parses the subtitle file
func (r *DefaultReader) Read() (*File, error) {
	if !strings.HasSuffix(strings.ToLower(r.path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", r.path)
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("subtitle file does not exist: %s", r.path)
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, err
	}
	file.Path = r.path
	return file, nil
}

// Parse parses an SRT document into cues. A whitespace-only document
// parses to an empty File. A block with a bad timestamp line or a
// non-increasing index fails with *MalformedError.
func Parse(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	currentLine := Line{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string
	lastIndex := 0
	block := 0
	first := true

	flush := func() {
		currentLine.Text = strings.Join(textLines, "\n")
		lines = append(lines, currentLine)
		currentLine = Line{}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\uFEFF") // BOM
			first = false
		}

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				return nil, &MalformedError{Block: block + 1, Reason: fmt.Sprintf("expected cue index, got %q", line)}
			}
			if index <= lastIndex {
				return nil, &MalformedError{Block: block + 1, Reason: fmt.Sprintf("cue index %d not increasing (previous %d)", index, lastIndex)}
			}
			block++
			lastIndex = index
			currentLine.Index = index
			state = "time"

		case "time":
			startTime, endTime, err := parseSRTTime(line)
			if err != nil {
				return nil, &MalformedError{Block: block, Reason: err.Error()}
			}
			if startTime > endTime {
				return nil, &MalformedError{Block: block, Reason: fmt.Sprintf("start time %v after end time %v", startTime, endTime)}
			}
			currentLine.StartTime = startTime
			currentLine.EndTime = endTime
			state = "text"
			textLines = nil

		case "text":
			if line == "" {
				// cue text ends
				flush()
				state = "index"
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle last cue when the document ends without a trailing blank line
	if state == "text" {
		flush()
	}
	if state == "time" {
		return nil, &MalformedError{Block: block, Reason: "missing timestamp line"}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle document: %w", err)
	}

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   "SRT",
	}, nil
}

var (
	srtTimeRe = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})[,.](\d{3}) --> (\d{2,}):(\d{2}):(\d{2})[,.](\d{3})$`)
	// Bare-seconds form, as emitted by the faster-whisper wrapper:
	// "12.34 --> 15.00"
	secTimeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?) --> (\d+(?:\.\d+)?)$`)
)

// parseSRTTime parses an SRT timestamp range line. Both the canonical
// "00:02:16,612 --> 00:02:19,376" form and the plain-seconds form used
// by the ASR tool are accepted.
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	if matches := srtTimeRe.FindStringSubmatch(timeString); len(matches) == 9 {
		parse := func(hours, minutes, seconds, millis string) time.Duration {
			h, _ := strconv.Atoi(hours)
			m, _ := strconv.Atoi(minutes)
			s, _ := strconv.Atoi(seconds)
			ms, _ := strconv.Atoi(millis)

			return time.Duration(h)*time.Hour +
				time.Duration(m)*time.Minute +
				time.Duration(s)*time.Second +
				time.Duration(ms)*time.Millisecond
		}
		return parse(matches[1], matches[2], matches[3], matches[4]),
			parse(matches[5], matches[6], matches[7], matches[8]), nil
	}

	if matches := secTimeRe.FindStringSubmatch(timeString); len(matches) == 3 {
		start, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
		}
		end, err := strconv.ParseFloat(matches[2], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
		}
		return time.Duration(start * float64(time.Second)),
			time.Duration(end * float64(time.Second)), nil
	}

	return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
}

// detectLanguage picks the dominant language across cue texts
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, line := range lines {
		lang := whatlanggo.DetectLang(line.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}

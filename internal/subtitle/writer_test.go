package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRoundTrip(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleSRT))
	require.NoError(t, err)

	// Identity translation: output cue content must match the input.
	for i := range file.Lines {
		file.Lines[i].TranslatedText = file.Lines[i].Text
	}

	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, NewWriter().Write(path, file))

	reparsed, err := NewReader(path).Read()
	require.NoError(t, err)
	require.Len(t, reparsed.Lines, len(file.Lines))
	for i, line := range reparsed.Lines {
		assert.Equal(t, file.Lines[i].Index, line.Index)
		assert.Equal(t, file.Lines[i].StartTime, line.StartTime)
		assert.Equal(t, file.Lines[i].EndTime, line.EndTime)
		assert.Equal(t, file.Lines[i].Text, line.Text)
	}
}

func TestWriteFailsOnMissingTranslation(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleSRT))
	require.NoError(t, err)
	file.Lines[0].TranslatedText = "你好"
	// Lines 2 and 3 left untranslated.

	path := filepath.Join(t.TempDir(), "out.srt")
	err = NewWriter().Write(path, file)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteTranslation)

	// No partial file may be left behind.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	entries, readErr := os.ReadDir(filepath.Dir(path))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestWriteUsesTranslatedText(t *testing.T) {
	file := &File{
		Lines: []Line{
			{Index: 1, StartTime: 0, EndTime: 1500 * time.Millisecond, Text: "こんにちは", TranslatedText: "你好"},
		},
	}

	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, NewWriter().Write(path, file))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "你好")
	assert.NotContains(t, string(raw), "こんにちは")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:02:16,612", formatDuration(2*time.Minute+16*time.Second+612*time.Millisecond))
	assert.Equal(t, "01:00:00,000", formatDuration(time.Hour))
	assert.Equal(t, "00:00:00,000", formatDuration(0))
}

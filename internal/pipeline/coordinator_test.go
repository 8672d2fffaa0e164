package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"localsub/internal/llm"
	"localsub/internal/subtitle"
	"localsub/internal/translator"
)

const testSRT = `1
00:00:01,000 --> 00:00:02,500
こんにちは

2
00:00:03,000 --> 00:00:04,000
ありがとう

3
00:00:05,250 --> 00:00:06,750
さようなら
`

var testTranslations = map[string]string{
	"こんにちは": "你好",
	"ありがとう": "谢谢",
	"さようなら": "再见",
}

func writeTestSRT(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.srt")
	require.NoError(t, os.WriteFile(path, []byte(testSRT), 0o644))
	return path
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, lines []subtitle.Line) ([]string, error)
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, lines []subtitle.Line) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, lines)
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = testTranslations[line.Text]
	}
	return out, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func readOutput(t *testing.T, path string) *subtitle.File {
	t.Helper()
	out, err := subtitle.NewReader(path).Read()
	require.NoError(t, err)
	return out
}

func TestTranslateHappyPath(t *testing.T) {
	src := writeTestSRT(t)
	c := NewCoordinator(&fakeTranslator{}, Config{TargetLanguage: language.SimplifiedChinese})

	var events [][2]int
	var mu sync.Mutex
	outcome, err := c.Translate(context.Background(), src, &RunOptions{
		Progress: func(done, total int) {
			mu.Lock()
			events = append(events, [2]int{done, total})
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, outcome.State)
	assert.Equal(t, 3, outcome.Done)
	assert.Equal(t, 3, outcome.Total)

	// Output sits next to the source, tagged with the language code.
	assert.Equal(t, filepath.Join(filepath.Dir(src), "episode.zh.srt"), outcome.OutputPath)

	out := readOutput(t, outcome.OutputPath)
	require.Len(t, out.Lines, 3)
	assert.Equal(t, "你好", out.Lines[0].Text)
	assert.Equal(t, "谢谢", out.Lines[1].Text)
	assert.Equal(t, "再见", out.Lines[2].Text)
	assert.Equal(t, time.Second, out.Lines[0].StartTime)

	require.NotEmpty(t, events)
	assert.Equal(t, [2]int{3, 3}, events[len(events)-1])
}

// Batches finishing out of completion order must still serialize in
// cue-index order.
func TestTranslateOrderInvariance(t *testing.T) {
	src := writeTestSRT(t)

	ft := &fakeTranslator{fn: func(ctx context.Context, lines []subtitle.Line) ([]string, error) {
		if lines[0].Index == 1 {
			time.Sleep(100 * time.Millisecond) // first batch completes last
		}
		out := make([]string, len(lines))
		for i, line := range lines {
			out[i] = testTranslations[line.Text]
		}
		return out, nil
	}}

	c := NewCoordinator(ft, Config{MaxBatchLines: 2, Concurrency: 2})
	outcome, err := c.Translate(context.Background(), src, nil)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, outcome.State)

	out := readOutput(t, outcome.OutputPath)
	require.Len(t, out.Lines, 3)
	for i, want := range []string{"你好", "谢谢", "再见"} {
		assert.Equal(t, i+1, out.Lines[i].Index)
		assert.Equal(t, want, out.Lines[i].Text)
	}
}

// A terminally failed batch fails the whole run and nothing is written.
func TestTranslateFailureAtomicity(t *testing.T) {
	src := writeTestSRT(t)

	ft := &fakeTranslator{fn: func(ctx context.Context, lines []subtitle.Line) ([]string, error) {
		if lines[0].Index == 3 {
			return nil, &translator.BatchError{StartIndex: 3, EndIndex: 3, Attempts: 3, Err: assert.AnError}
		}
		out := make([]string, len(lines))
		for i, line := range lines {
			out[i] = testTranslations[line.Text]
		}
		return out, nil
	}}

	c := NewCoordinator(ft, Config{MaxBatchLines: 2})
	outcome, err := c.Translate(context.Background(), src, nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.FailedRange)
	assert.Equal(t, 3, outcome.FailedRange.Start)
	assert.Equal(t, 3, outcome.FailedRange.End)

	_, statErr := os.Stat(c.OutputPath(src))
	assert.True(t, os.IsNotExist(statErr), "no output file may exist after a failed run")
}

func TestTranslateCancellation(t *testing.T) {
	src := writeTestSRT(t)
	ctx, cancel := context.WithCancel(context.Background())

	ft := &fakeTranslator{fn: func(ctx context.Context, lines []subtitle.Line) ([]string, error) {
		cancel()
		return nil, ctx.Err()
	}}

	c := NewCoordinator(ft, Config{MaxBatchLines: 1})
	outcome, err := c.Translate(ctx, src, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, outcome.State)

	// Cancellation stops dispatch: only the in-flight batch ran.
	assert.Equal(t, 1, ft.callCount())

	_, statErr := os.Stat(c.OutputPath(src))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTranslateEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.srt")
	require.NoError(t, os.WriteFile(path, []byte("  \n\n"), 0o644))

	c := NewCoordinator(&fakeTranslator{}, Config{})
	outcome, err := c.Translate(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, outcome.State)
	assert.Equal(t, 0, outcome.Total)
	assert.Empty(t, outcome.OutputPath)
}

func TestTranslateMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\nnot a timestamp\ntext\n"), 0o644))

	ft := &fakeTranslator{}
	c := NewCoordinator(ft, Config{})
	outcome, err := c.Translate(context.Background(), path, nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, outcome.State)
	var malformed *subtitle.MalformedError
	assert.ErrorAs(t, err, &malformed)
	assert.Zero(t, ft.callCount(), "translation must not start on a malformed document")
}

type memCheckpoints struct {
	mu   sync.Mutex
	data map[string][]string
}

func (m *memCheckpoints) key(key string, start, end int) string {
	return fmt.Sprintf("%s|%d:%d", key, start, end)
}

func (m *memCheckpoints) Load(key string, start, end int) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[m.key(key, start, end)]
	return v, ok
}

func (m *memCheckpoints) Save(_ context.Context, key string, start, end int, translated []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]string{}
	}
	m.data[m.key(key, start, end)] = append([]string(nil), translated...)
	return nil
}

func TestTranslateReusesCheckpoints(t *testing.T) {
	src := writeTestSRT(t)
	store := &memCheckpoints{}
	opts := &RunOptions{CheckpointKey: "job-1"}

	first := &fakeTranslator{}
	c := NewCoordinator(first, Config{MaxBatchLines: 2}, WithCheckpointStore(store))
	_, err := c.Translate(context.Background(), src, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.callCount())

	second := &fakeTranslator{}
	c = NewCoordinator(second, Config{MaxBatchLines: 2}, WithCheckpointStore(store))
	outcome, err := c.Translate(context.Background(), src, opts)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, outcome.State)
	assert.Zero(t, second.callCount(), "all batches must come from checkpoints")
}

type fakeRecognizer struct {
	subtitlePath string
	err          error
}

func (f *fakeRecognizer) Transcribe(_ context.Context, _ string) (string, error) {
	return f.subtitlePath, f.err
}

func TestTranslateVideo(t *testing.T) {
	src := writeTestSRT(t)
	c := NewCoordinator(&fakeTranslator{}, Config{}, WithRecognizer(&fakeRecognizer{subtitlePath: src}))

	outcome, err := c.TranslateVideo(context.Background(), "/videos/episode.mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, outcome.State)
}

func TestTranslateVideoASRFailure(t *testing.T) {
	c := NewCoordinator(&fakeTranslator{}, Config{}, WithRecognizer(&fakeRecognizer{err: assert.AnError}))

	outcome, err := c.TranslateVideo(context.Background(), "/videos/episode.mp4", nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Contains(t, err.Error(), "speech recognition failed")
}

func TestTranslateVideoWithoutRecognizer(t *testing.T) {
	c := NewCoordinator(&fakeTranslator{}, Config{})
	_, err := c.TranslateVideo(context.Background(), "/videos/episode.mp4", nil)
	require.Error(t, err)
}

// End-to-end through the real translator against a mock endpoint.
func TestTranslateAgainstMockEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		user := req.Messages[len(req.Messages)-1].Content

		var out []string
		for _, line := range strings.Split(user, "\n") {
			tag, text, _ := strings.Cut(line, " ")
			out = append(out, tag+" "+testTranslations[text])
		}
		resp := llm.ChatResponse{Choices: []llm.Choice{
			{Message: llm.Message{Role: "assistant", Content: strings.Join(out, "\n")}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	config := llm.DefaultConfig("test-model")
	config.APIURL = server.URL
	client, err := llm.NewClient(config)
	require.NoError(t, err)

	trans := translator.NewLLMTranslator(client, translator.Options{
		SourceLanguage: "Japanese",
		TargetLanguage: "Simplified Chinese",
	})

	src := writeTestSRT(t)
	c := NewCoordinator(trans, Config{TargetLanguage: language.SimplifiedChinese})
	outcome, err := c.Translate(context.Background(), src, nil)
	require.NoError(t, err)

	out := readOutput(t, outcome.OutputPath)
	require.Len(t, out.Lines, 3)
	assert.Equal(t, "你好", out.Lines[0].Text)
	assert.Equal(t, "谢谢", out.Lines[1].Text)
	assert.Equal(t, "再见", out.Lines[2].Text)
	// Timestamps and indices unchanged.
	assert.Equal(t, 5250*time.Millisecond, out.Lines[2].StartTime)
	assert.Equal(t, 3, out.Lines[2].Index)
}

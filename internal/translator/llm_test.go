package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localsub/internal/llm"
	"localsub/internal/subtitle"
)

func newTestTranslator(t *testing.T, handler http.HandlerFunc, opts Options) (Translator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := llm.DefaultConfig("test-model")
	config.APIURL = server.URL
	config.Timeout = 5
	client, err := llm.NewClient(config)
	require.NoError(t, err)

	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Millisecond
	}
	return NewLLMTranslator(client, opts), server
}

func respond(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := llm.ChatResponse{
		Choices: []llm.Choice{
			{Message: llm.Message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func userContent(t *testing.T, r *http.Request) string {
	t.Helper()
	var req llm.ChatRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req.Messages[len(req.Messages)-1].Content
}

func cueLines(texts ...string) []subtitle.Line {
	lines := make([]subtitle.Line, len(texts))
	for i, text := range texts {
		lines[i] = subtitle.Line{Index: i + 1, Text: text}
	}
	return lines
}

func TestTranslateBatch(t *testing.T) {
	translations := map[string]string{
		"こんにちは": "你好",
		"ありがとう": "谢谢",
		"さようなら": "再见",
	}

	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		var out []string
		for _, line := range strings.Split(userContent(t, r), "\n") {
			tag, text, ok := strings.Cut(line, " ")
			require.True(t, ok)
			out = append(out, tag+" "+translations[text])
		}
		respond(t, w, strings.Join(out, "\n"))
	}, Options{})

	got, err := tr.TranslateBatch(context.Background(), cueLines("こんにちは", "ありがとう", "さようなら"))
	require.NoError(t, err)
	assert.Equal(t, []string{"你好", "谢谢", "再见"}, got)
}

func TestTranslateBatchSkipsSoundEffects(t *testing.T) {
	var requests atomic.Int32
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		content := userContent(t, r)
		// Only the real dialogue line may reach the endpoint.
		assert.NotContains(t, content, "拍手")
		respond(t, w, "<L1> 你好")
	}, Options{})

	got, err := tr.TranslateBatch(context.Background(), cueLines("[拍手]", "こんにちは", "♪～"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[拍手]", "你好", "♪～"}, got)
	assert.Equal(t, int32(1), requests.Load())
}

func TestTranslateBatchAllSkipped(t *testing.T) {
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("endpoint must not be called")
	}, Options{})

	got, err := tr.TranslateBatch(context.Background(), cueLines("（笑）", "[音楽]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"（笑）", "[音楽]"}, got)
}

func TestTranslateBatchRestoresInlineBreaks(t *testing.T) {
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		content := userContent(t, r)
		assert.Contains(t, content, "<br>")
		assert.NotContains(t, content, "こんにちは\nせかい")
		respond(t, w, "<L1> 你好<br>世界")
	}, Options{})

	got, err := tr.TranslateBatch(context.Background(), cueLines("こんにちは\nせかい"))
	require.NoError(t, err)
	assert.Equal(t, []string{"你好\n世界"}, got)
}

func TestTranslateBatchRetriesOnAlignmentMismatch(t *testing.T) {
	var requests atomic.Int32
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = userContent(t, r)
		if requests.Add(1) == 1 {
			// Two lines for a three-line request.
			respond(t, w, "<L1> 你好\n<L2> 谢谢")
			return
		}
		respond(t, w, "<L1> 你好\n<L2> 谢谢\n<L3> 再见")
	}, Options{})

	got, err := tr.TranslateBatch(context.Background(), cueLines("こんにちは", "ありがとう", "さようなら"))
	require.NoError(t, err)
	assert.Equal(t, []string{"你好", "谢谢", "再见"}, got)
	assert.Equal(t, int32(2), requests.Load())
}

func TestTranslateBatchExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{}`))
	}, Options{MaxRetries: 3})

	lines := cueLines("こんにちは", "ありがとう")
	lines[0].Index = 5
	lines[1].Index = 6

	_, err := tr.TranslateBatch(context.Background(), lines)
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 5, batchErr.StartIndex)
	assert.Equal(t, 6, batchErr.EndIndex)
	assert.Equal(t, 3, batchErr.Attempts)
	assert.Equal(t, int32(3), requests.Load())
}

func TestTranslateBatchLineFallback(t *testing.T) {
	fallbackAnswers := map[string]string{
		"こんにちは": "你好",
		"ありがとう": "谢谢",
	}

	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		system := req.Messages[0].Content
		user := req.Messages[len(req.Messages)-1].Content

		if strings.Contains(system, "single subtitle line") {
			respond(t, w, fallbackAnswers[user])
			return
		}
		// The batched path never aligns.
		respond(t, w, "nonsense without tags")
	}, Options{MaxRetries: 2, LineFallback: true})

	got, err := tr.TranslateBatch(context.Background(), cueLines("こんにちは", "ありがとう"))
	require.NoError(t, err)
	assert.Equal(t, []string{"你好", "谢谢"}, got)
}

func TestTranslateBatchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{}`))
	}, Options{MaxRetries: 5, BackoffBase: time.Minute})

	_, err := tr.TranslateBatch(ctx, cueLines("こんにちは"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTagged(t *testing.T) {
	src := []string{"a", "b", "c"}

	got, err := parseTagged("<L1> 一\n<L2> 二\n<L3> 三\n", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "二", "三"}, got)

	// Blank lines in the response are ignored.
	got, err = parseTagged("\n<L1> 一\n\n<L2> 二\n<L3> 三\n\n", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "二", "三"}, got)

	// Count mismatch.
	_, err = parseTagged("<L1> 一\n<L2> 二", src)
	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, 3, alignErr.Want)
	assert.Equal(t, 2, alignErr.Got)

	// Tag mismatch.
	_, err = parseTagged("<L1> 一\n<L3> 二\n<L2> 三", src)
	require.ErrorAs(t, err, &alignErr)

	// Empty translation falls back to the source text.
	got, err = parseTagged("<L1> 一\n<L2>\n<L3> 三", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "b", "三"}, got)
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, ShouldSkip(""))
	assert.True(t, ShouldSkip("   "))
	assert.True(t, ShouldSkip("[拍手]"))
	assert.True(t, ShouldSkip("(sigh)"))
	assert.True(t, ShouldSkip("（ため息）"))
	assert.True(t, ShouldSkip("♪～"))
	assert.True(t, ShouldSkip("[音楽]\n（拍手）"))

	assert.False(t, ShouldSkip("こんにちは"))
	assert.False(t, ShouldSkip("[拍手]\nこんにちは"))
	assert.False(t, ShouldSkip("hello (world)"))
}

package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"localsub/internal/llm"
	"localsub/internal/subtitle"
	"localsub/pkg/log"
)

const (
	// Each request line is prefixed with a tag so the response can be
	// realigned even if the model reorders or renumbers output.
	lineTagFmt = "<L%d>"

	// Placeholder for line breaks inside one cue, so a two-line cue
	// still occupies exactly one request line.
	inlineBreak = "<br>"

	// Token cap for single-line fallback requests.
	maxTokensLine = 256
)

type llmTranslator struct {
	client *llm.Client
	opts   Options
}

// NewLLMTranslator creates a translator backed by the local inference
// endpoint.
func NewLLMTranslator(client *llm.Client, opts Options) Translator {
	return &llmTranslator{
		client: client,
		opts:   opts.withDefaults(),
	}
}

// TranslateBatch translates one batch of cues. Sound-effect cues pass
// through unchanged. Transient failures (transport errors, bad status,
// alignment mismatches) are retried with exponential backoff; after
// exhaustion the batch optionally falls back to per-line requests, and
// only then fails terminally with *BatchError.
func (t *llmTranslator) TranslateBatch(ctx context.Context, lines []subtitle.Line) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	results := make([]string, len(lines))
	var positions []int
	var src []string
	for i, line := range lines {
		if ShouldSkip(line.Text) {
			results[i] = line.Text
			continue
		}
		positions = append(positions, i)
		src = append(src, strings.ReplaceAll(line.Text, "\n", inlineBreak))
	}
	if len(src) == 0 {
		return results, nil
	}

	translated, err := t.withRetries(ctx, func(ctx context.Context) ([]string, error) {
		return t.translateTagged(ctx, src)
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && t.opts.LineFallback {
		log.Warn("Batch for cues %d-%d exhausted retries (%v), falling back to per-line translation",
			lines[0].Index, lines[len(lines)-1].Index, err)
		translated, err = t.translateLines(ctx, src)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &BatchError{
			StartIndex: lines[0].Index,
			EndIndex:   lines[len(lines)-1].Index,
			Attempts:   t.opts.MaxRetries,
			Err:        err,
		}
	}

	for j, i := range positions {
		out := strings.TrimSpace(strings.ReplaceAll(translated[j], inlineBreak, "\n"))
		if out == "" {
			// An empty translation is worse than the original text.
			out = lines[i].Text
		}
		results[i] = out
	}
	return results, nil
}

// withRetries runs fn up to MaxRetries times with doubling backoff.
func (t *llmTranslator) withRetries(ctx context.Context, fn func(context.Context) ([]string, error)) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < t.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := t.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("Translation attempt %d/%d failed: %v", attempt+1, t.opts.MaxRetries, err)
	}
	return nil, lastErr
}

func (t *llmTranslator) backoff(ctx context.Context, exponent int) error {
	delay := t.opts.BackoffBase
	for i := 0; i < exponent && delay < t.opts.BackoffCap; i++ {
		delay *= 2
	}
	if delay > t.opts.BackoffCap {
		delay = t.opts.BackoffCap
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// translateTagged sends all lines in one request and realigns the
// response by tags.
func (t *llmTranslator) translateTagged(ctx context.Context, src []string) ([]string, error) {
	tagged := make([]string, len(src))
	for i, line := range src {
		tagged[i] = fmt.Sprintf(lineTagFmt, i+1) + " " + line
	}

	raw, err := t.client.SimpleChat(ctx, strings.Join(tagged, "\n"),
		llm.NewChatCompletionOptions().WithSystemPrompt(t.batchPrompt()))
	if err != nil {
		return nil, err
	}

	return parseTagged(raw, src)
}

// parseTagged validates count and tags; any mismatch is an
// *AlignmentError so the caller retries instead of fabricating lines.
func parseTagged(raw string, src []string) ([]string, error) {
	var outLines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			outLines = append(outLines, strings.TrimSpace(line))
		}
	}

	if len(outLines) != len(src) {
		return nil, &AlignmentError{Want: len(src), Got: len(outLines)}
	}

	results := make([]string, len(src))
	for i, out := range outLines {
		prefix := fmt.Sprintf(lineTagFmt, i+1)
		if !strings.HasPrefix(out, prefix) {
			return nil, &AlignmentError{
				Want:   len(src),
				Got:    len(outLines),
				Detail: fmt.Sprintf("line %d does not start with %s", i+1, prefix),
			}
		}
		text := strings.TrimSpace(strings.TrimPrefix(out, prefix))
		if text == "" {
			text = src[i]
		}
		results[i] = text
	}
	return results, nil
}

// translateLines is the per-line fallback path: slower, but one bad
// line cannot desync the whole batch.
func (t *llmTranslator) translateLines(ctx context.Context, src []string) ([]string, error) {
	results := make([]string, len(src))
	for i, line := range src {
		out, err := t.withRetries(ctx, func(ctx context.Context) ([]string, error) {
			content, err := t.client.SimpleChat(ctx, line,
				llm.NewChatCompletionOptions().
					WithSystemPrompt(t.linePrompt()).
					WithMaxTokens(maxTokensLine))
			if err != nil {
				return nil, err
			}
			return []string{strings.TrimSpace(content)}, nil
		})
		if err != nil {
			return nil, err
		}
		if out[0] == "" {
			out[0] = line
		}
		results[i] = out[0]
	}
	return results, nil
}

func (t *llmTranslator) batchPrompt() string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a professional %s-to-%s subtitle translator.\n",
		t.opts.SourceLanguage, t.opts.TargetLanguage)
	prompt.WriteString("You will receive multiple subtitle lines, each starting with a <L#> tag.\n")
	fmt.Fprintf(&prompt, "Translate each line into natural, fluent %s, keeping line count and tags unchanged.\n",
		t.opts.TargetLanguage)
	prompt.WriteString("Hard requirements:\n")
	prompt.WriteString("- Output exactly one line per input line\n")
	prompt.WriteString("- Each output line must start with the same <L#> tag (<L1>, <L2>, ...)\n")
	prompt.WriteString("- Never merge, drop, or add lines\n")
	prompt.WriteString("- Preserve " + inlineBreak + " markers where they appear\n")
	prompt.WriteString("- Output only the translations, no explanations\n")
	prompt.WriteString("- Do not output the source text\n")
	return prompt.String()
}

func (t *llmTranslator) linePrompt() string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a professional %s-to-%s subtitle translator.\n",
		t.opts.SourceLanguage, t.opts.TargetLanguage)
	fmt.Fprintf(&prompt, "Translate the single subtitle line you receive into natural, fluent %s.\n",
		t.opts.TargetLanguage)
	prompt.WriteString("Output only the translation, no explanations.\n")
	prompt.WriteString("Do not output the source text.\n")
	prompt.WriteString("Keep it short, suitable for on-screen reading.\n")
	return prompt.String()
}

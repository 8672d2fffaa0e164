// Package pipeline drives one subtitle file end to end: parse, batch,
// translate, reassemble, write. It owns the per-file run state machine
// and guarantees that a failed or cancelled run leaves no output file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"localsub/internal/asr"
	"localsub/internal/batch"
	"localsub/internal/subtitle"
	"localsub/internal/translator"
	"localsub/pkg/file"
	"localsub/pkg/log"
)

type Coordinator struct {
	translator  translator.Translator
	recognizer  asr.Recognizer
	writer      subtitle.Writer
	checkpoints CheckpointStore
	cfg         Config
}

type Option func(*Coordinator)

// WithRecognizer enables TranslateVideo via the given ASR adapter.
func WithRecognizer(rec asr.Recognizer) Option {
	return func(c *Coordinator) {
		c.recognizer = rec
	}
}

// WithCheckpointStore enables batch-level checkpoint reuse.
func WithCheckpointStore(store CheckpointStore) Option {
	return func(c *Coordinator) {
		c.checkpoints = store
	}
}

// WithWriter overrides the subtitle writer (used by tests).
func WithWriter(w subtitle.Writer) Option {
	return func(c *Coordinator) {
		c.writer = w
	}
}

func NewCoordinator(trans translator.Translator, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		translator: trans,
		writer:     subtitle.NewWriter(),
		cfg:        cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutputPath returns where the translated document for subtitlePath
// will be written: next to the source, tagged with the target language.
func (c *Coordinator) OutputPath(subtitlePath string) string {
	base, _ := c.cfg.TargetLanguage.Base()
	return file.WithLanguageSuffix(subtitlePath, base.String())
}

// TranslateVideo runs ASR on the video, then translates the produced
// subtitle. Blocks until the external tool completes.
func (c *Coordinator) TranslateVideo(ctx context.Context, videoPath string, opts *RunOptions) (*Outcome, error) {
	if c.recognizer == nil {
		return nil, fmt.Errorf("no ASR recognizer configured")
	}

	subtitlePath, err := c.recognizer.Transcribe(ctx, videoPath)
	if err != nil {
		return &Outcome{RunID: uuid.NewString(), State: StateFailed}, fmt.Errorf("speech recognition failed: %w", err)
	}

	return c.Translate(ctx, subtitlePath, opts)
}

// Translate runs the full pipeline for one subtitle file.
// The returned Outcome always carries the terminal state; the error
// explains non-success.
func (c *Coordinator) Translate(ctx context.Context, subtitlePath string, opts *RunOptions) (*Outcome, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	outcome := &Outcome{RunID: uuid.NewString(), State: StatePending}

	log.Info("Run %s: translating %s to %s", outcome.RunID, subtitlePath, c.cfg.TargetLanguage)

	outcome.State = StateParsing
	doc, err := subtitle.NewReader(subtitlePath).Read()
	if err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("failed to parse subtitle: %w", err)
	}

	outcome.Total = len(doc.Lines)
	if outcome.Total == 0 {
		// An empty document is a valid no-op.
		log.Warn("Run %s: %s has no cues, nothing to translate", outcome.RunID, subtitlePath)
		outcome.State = StateSucceeded
		return outcome, nil
	}

	outcome.State = StateTranslating
	results, err := c.translateBatches(ctx, doc, opts, outcome)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			outcome.State = StateCancelled
			return outcome, err
		}
		outcome.State = StateFailed
		var batchErr *translator.BatchError
		if errors.As(err, &batchErr) {
			outcome.FailedRange = &CueRange{Start: batchErr.StartIndex, End: batchErr.EndIndex}
		}
		return outcome, err
	}

	// Reassemble in cue order, independent of batch completion order.
	for i := range doc.Lines {
		text, ok := results[doc.Lines[i].Index]
		if !ok {
			outcome.State = StateFailed
			return outcome, fmt.Errorf("%w: cue %d missing after translation", subtitle.ErrIncompleteTranslation, doc.Lines[i].Index)
		}
		doc.Lines[i].TranslatedText = text
	}
	doc.Language = c.cfg.TargetLanguage

	outcome.State = StateWriting
	outputPath := c.OutputPath(subtitlePath)
	if err := c.writer.Write(outputPath, doc); err != nil {
		outcome.State = StateFailed
		return outcome, fmt.Errorf("failed to write translated subtitle: %w", err)
	}

	outcome.State = StateSucceeded
	outcome.OutputPath = outputPath
	log.Info("Run %s: wrote %s (%d cues)", outcome.RunID, outputPath, outcome.Total)
	return outcome, nil
}

// translateBatches dispatches batches with bounded concurrency and
// collects translations keyed by cue index.
func (c *Coordinator) translateBatches(
	ctx context.Context,
	doc *subtitle.File,
	opts *RunOptions,
	outcome *Outcome,
) (map[int]string, error) {
	batches := batch.Split(doc.Lines, c.cfg.MaxBatchChars, c.cfg.MaxBatchLines)

	var mu sync.Mutex
	results := make(map[int]string, len(doc.Lines))

	report := func(translated int) {
		mu.Lock()
		outcome.Done += translated
		done := outcome.Done
		mu.Unlock()
		if opts.Progress != nil {
			opts.Progress(done, outcome.Total)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for _, b := range batches {
		// No further batches are dispatched once the run is cancelled
		// or another batch has failed terminally.
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			texts, err := c.translateOneBatch(gctx, b, opts)
			if err != nil {
				report(0)
				return err
			}

			mu.Lock()
			for i, line := range b.Lines {
				results[line.Index] = texts[i]
			}
			mu.Unlock()
			report(len(b.Lines))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// The outer cancellation wins over secondary batch errors.
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		return nil, err
	}
	return results, nil
}

func (c *Coordinator) translateOneBatch(ctx context.Context, b batch.Batch, opts *RunOptions) ([]string, error) {
	if c.checkpoints != nil && opts.CheckpointKey != "" {
		if cached, ok := c.checkpoints.Load(opts.CheckpointKey, b.Start(), b.End()); ok && len(cached) == len(b.Lines) {
			log.Debug("Reusing checkpointed translation for cues %d-%d", b.Start(), b.End())
			return cached, nil
		}
	}

	texts, err := c.translator.TranslateBatch(ctx, b.Lines)
	if err != nil {
		return nil, err
	}

	if c.checkpoints != nil && opts.CheckpointKey != "" {
		if err := c.checkpoints.Save(ctx, opts.CheckpointKey, b.Start(), b.End(), texts); err != nil {
			// Checkpointing is an optimization; the run continues.
			log.Error("Failed to checkpoint cues %d-%d: %v", b.Start(), b.End(), err)
		}
	}
	return texts, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"localsub/internal/asr"
	"localsub/internal/config"
	"localsub/internal/httpapi"
	"localsub/internal/jobs"
	"localsub/internal/library"
	"localsub/internal/llm"
	"localsub/internal/persistence"
	"localsub/internal/pipeline"
	"localsub/internal/translator"
	"localsub/pkg/log"
)

func main() {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	client, err := llm.NewClient(cfg.LLM.ClientConfig())
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	trans := translator.NewLLMTranslator(client, translator.Options{
		SourceLanguage: cfg.Translate.SourceLanguage,
		TargetLanguage: languageName(cfg),
		MaxRetries:     cfg.Translate.MaxRetries,
		LineFallback:   cfg.Translate.LineFallback,
	})

	store, err := persistence.NewSQLiteStore(cfg.System.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	recognizer := asr.NewWhisperCLI(asr.Config{
		Command:  cfg.ASR.Command,
		Model:    cfg.ASR.Model,
		Language: cfg.ASR.Language,
	})

	coordinator := pipeline.NewCoordinator(trans,
		pipeline.Config{
			TargetLanguage: cfg.Translate.TargetLanguage,
			MaxBatchChars:  cfg.Translate.BatchChars,
			MaxBatchLines:  cfg.Translate.BatchLines,
			Concurrency:    cfg.Translate.Concurrency,
		},
		pipeline.WithRecognizer(recognizer),
		pipeline.WithCheckpointStore(store),
	)

	queue := jobs.NewQueue(cfg.System.WorkerCount, store)
	queue.Start(newExecutor(coordinator))
	defer queue.Stop()

	scanner := library.NewScanner(cfg.Library.MediaDirs, cfg.Translate.TargetLanguage)

	serverOpts := make([]httpapi.Option, 0, 1)
	if len(cfg.Library.MediaDirs) > 0 {
		scheduler, err := library.NewScheduler(scanner, cfg.Library.ScanCron, newScanEnqueue(queue, scanner))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		serverOpts = append(serverOpts, httpapi.WithScan(scheduler.RunScan, cfg.Library.ScanCron))
	}

	if cfg.System.HTTPPort <= 0 {
		log.Info("HTTP server disabled, running scans only")
		<-ctx.Done()
		return nil
	}

	server := httpapi.NewServer(scanner, queue, serverOpts...)
	addr := fmt.Sprintf(":%d", cfg.System.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		return server.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// newExecutor bridges queue jobs to pipeline runs. The job ID doubles as
// the checkpoint key so a retried job skips already-translated batches.
func newExecutor(coordinator *pipeline.Coordinator) jobs.Executor {
	return func(ctx context.Context, job *jobs.TranslationJob, report func(done, total int)) (string, error) {
		opts := &pipeline.RunOptions{
			CheckpointKey: job.ID,
			Progress:      report,
		}

		var outcome *pipeline.Outcome
		var err error
		if job.Payload.SubtitleFile != "" {
			outcome, err = coordinator.Translate(ctx, job.Payload.SubtitleFile, opts)
		} else {
			outcome, err = coordinator.TranslateVideo(ctx, job.Payload.VideoFile, opts)
		}
		if err != nil {
			return "", err
		}
		return outcome.OutputPath, nil
	}
}

func newScanEnqueue(queue *jobs.Queue, scanner *library.Scanner) library.EnqueueFunc {
	return func(item library.Item) {
		payload := jobs.JobPayload{SubtitleFile: item.SourceSubtitle()}
		dedupe := item.SourceSubtitle()
		if item.NeedsTranscription {
			payload.VideoFile = item.VideoPath
			dedupe = item.VideoPath
		}
		queue.Enqueue(jobs.EnqueueRequest{
			Source:    "scan",
			DedupeKey: dedupe + "|" + scanner.TargetLanguage(),
			Payload:   payload,
		})
	}
}

// languageName maps the configured tag to the name used in prompts.
func languageName(cfg *config.Config) string {
	base, _ := cfg.Translate.TargetLanguage.Base()
	switch base.String() {
	case "zh":
		return "Simplified Chinese"
	case "en":
		return "English"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	default:
		return cfg.Translate.TargetLanguage.String()
	}
}

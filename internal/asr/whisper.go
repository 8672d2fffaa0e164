// Package asr wraps the external speech-recognition tool that turns a
// video file into a source-language subtitle. The tool is a black box:
// the contract is "writes <video stem>.srt or exits non-zero".
package asr

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"

	"localsub/pkg/file"
	"localsub/pkg/log"
)

// Recognizer produces a subtitle file for a video and returns its path.
type Recognizer interface {
	Transcribe(ctx context.Context, videoPath string) (string, error)
}

// Config configures the faster-whisper command line.
type Config struct {
	Command  string // executable to invoke
	Model    string // whisper model name
	Language string // expected speech language code
}

const (
	DefaultCommand  = "faster-whisper"
	DefaultModel    = "large-v3"
	DefaultLanguage = "ja"
)

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	return c
}

type whisperCLI struct {
	cfg Config
}

// NewWhisperCLI creates a Recognizer that shells out to faster-whisper.
func NewWhisperCLI(cfg Config) Recognizer {
	return &whisperCLI{cfg: cfg.withDefaults()}
}

// Transcribe blocks until the external tool finishes. There is no
// partial-result streaming; stdout is only forwarded to the log.
func (w *whisperCLI) Transcribe(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file not accessible: %w", err)
	}

	outputPath := file.ReplaceExt(videoPath, ".srt")

	cmd := exec.CommandContext(ctx, w.cfg.Command,
		videoPath,
		"--model", w.cfg.Model,
		"--language", w.cfg.Language,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to attach to ASR output: %w", err)
	}
	cmd.Stderr = cmd.Stdout // merge channels, the tool logs progress on both

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ASR tool %q: %w", w.cfg.Command, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		log.Info("asr: %s", scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("ASR tool failed for %s: %w", videoPath, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("ASR tool exited cleanly but produced no subtitle at %s", outputPath)
	}

	return outputPath, nil
}

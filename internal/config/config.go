package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"localsub/internal/llm"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults for a local LM Studio setup.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key (default: lm-studio, local servers ignore it)
// - LLM_API_URL: API endpoint URL (default: http://127.0.0.1:1234/v1)
// - LLM_MODEL: Model name to use (default: local-model)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 1024)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.2)
// - LLM_TIMEOUT: Request timeout in seconds (default: 300)
//
// Speech Recognition:
// - ASR_COMMAND: transcription CLI (default: faster-whisper)
// - ASR_MODEL: model name (default: large-v3)
// - ASR_LANGUAGE: spoken language hint (default: ja)
//
// Translation:
// - SOURCE_LANGUAGE: prompt name of the source language (default: Japanese)
// - TARGET_LANGUAGE: output language tag (default: zh-Hans)
// - TRANSLATE_MAX_RETRIES: attempts per batch (default: 3)
// - TRANSLATE_BATCH_CHARS: character budget per batch (default: 2000)
// - TRANSLATE_BATCH_LINES: line cap per batch (default: 20)
// - TRANSLATE_CONCURRENCY: parallel batches in flight (default: 1)
// - TRANSLATE_LINE_FALLBACK: per-line retry after batch failure (default: true)
//
// Library:
// - MEDIA_DIRS: comma-separated media roots (default: none, scan disabled)
// - SCAN_CRON: scan schedule (default: 0 3 * * *)
//
// System:
// - DATA_DIR: state directory for the job database (default: ./data)
// - HTTP_PORT: API listen port (default: 8090, 0 disables the server)
// - WORKER_COUNT: queue workers (default: 1)
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	ASR       ASRConfig       `json:"asr"`
	Translate TranslateConfig `json:"translate"`
	Library   LibraryConfig   `json:"library"`
	System    SystemConfig    `json:"system"`
}

type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// ClientConfig converts to the llm package's config.
func (c LLMConfig) ClientConfig() *llm.Config {
	return &llm.Config{
		APIKey:      c.APIKey,
		APIURL:      c.APIURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

type ASRConfig struct {
	Command  string `json:"command"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type TranslateConfig struct {
	SourceLanguage string       `json:"source_language"`
	TargetLanguage language.Tag `json:"target_language"`
	MaxRetries     int          `json:"max_retries"`
	BatchChars     int          `json:"batch_chars"`
	BatchLines     int          `json:"batch_lines"`
	Concurrency    int          `json:"concurrency"`
	LineFallback   bool         `json:"line_fallback"`
}

type LibraryConfig struct {
	MediaDirs []string `json:"media_dirs"`
	ScanCron  string   `json:"scan_cron"`
}

type SystemConfig struct {
	DataDir     string `json:"data_dir"`
	HTTPPort    int    `json:"http_port"`
	WorkerCount int    `json:"worker_count"`
}

// DBPath returns the job database location under the data directory.
func (c SystemConfig) DBPath() string {
	return filepath.Join(c.DataDir, "localsub.db")
}

type Option func(*Config)

// NewFromEnv creates a Config from environment variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", llm.DefaultAPIKey),
			APIURL:      getEnvString("LLM_API_URL", llm.DefaultAPIURL),
			Model:       getEnvString("LLM_MODEL", "local-model"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", llm.DefaultMaxTokens),
			Temperature: getEnvFloat("LLM_TEMPERATURE", llm.DefaultTemperature),
			Timeout:     getEnvInt("LLM_TIMEOUT", llm.DefaultTimeout),
		},
		ASR: ASRConfig{
			Command:  getEnvString("ASR_COMMAND", "faster-whisper"),
			Model:    getEnvString("ASR_MODEL", "large-v3"),
			Language: getEnvString("ASR_LANGUAGE", "ja"),
		},
		Translate: TranslateConfig{
			SourceLanguage: getEnvString("SOURCE_LANGUAGE", "Japanese"),
			MaxRetries:     getEnvInt("TRANSLATE_MAX_RETRIES", 3),
			BatchChars:     getEnvInt("TRANSLATE_BATCH_CHARS", 2000),
			BatchLines:     getEnvInt("TRANSLATE_BATCH_LINES", 20),
			Concurrency:    getEnvInt("TRANSLATE_CONCURRENCY", 1),
			LineFallback:   getEnvBool("TRANSLATE_LINE_FALLBACK", true),
		},
		Library: LibraryConfig{
			MediaDirs: splitDirs(getEnvString("MEDIA_DIRS", "")),
			ScanCron:  getEnvString("SCAN_CRON", "0 3 * * *"),
		},
		System: SystemConfig{
			DataDir:     getEnvString("DATA_DIR", "./data"),
			HTTPPort:    getEnvInt("HTTP_PORT", 8090),
			WorkerCount: getEnvInt("WORKER_COUNT", 1),
		},
	}

	target := getEnvString("TARGET_LANGUAGE", "zh-Hans")
	tag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE %q: %w", target, err)
	}
	config.Translate.TargetLanguage = tag

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.LLM.APIURL == "" {
		return fmt.Errorf("LLM_API_URL is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.Translate.MaxRetries < 1 {
		return fmt.Errorf("TRANSLATE_MAX_RETRIES must be at least 1")
	}
	if c.Translate.BatchChars < 1 {
		return fmt.Errorf("TRANSLATE_BATCH_CHARS must be positive")
	}
	return nil
}

func splitDirs(value string) []string {
	if value == "" {
		return nil
	}
	ret := make([]string, 0)
	for _, dir := range strings.Split(value, ",") {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			ret = append(ret, dir)
		}
	}
	return ret
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

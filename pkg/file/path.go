package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path with ext ("" removes it).
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}

	return filepath.Join(dir, filename[:lastDot]+ext)
}

// WithLanguageSuffix inserts a language code before the extension:
// movie.srt + "zh" -> movie.zh.srt. Used to name translated output
// next to the source file.
func WithLanguageSuffix(path, lang string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".srt"
	}
	return base + "." + strings.ToLower(lang) + ext
}

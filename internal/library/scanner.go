package library

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Scanner walks media roots and reports videos that still need a
// target-language subtitle.
type Scanner struct {
	roots []string

	mu             sync.RWMutex
	targetLanguage language.Tag
}

func NewScanner(roots []string, targetLanguage language.Tag) *Scanner {
	return &Scanner{
		roots:          roots,
		targetLanguage: targetLanguage,
	}
}

func (s *Scanner) TargetLanguage() string {
	s.mu.RLock()
	target := s.targetLanguage
	s.mu.RUnlock()

	base, _ := target.Base()
	return base.String()
}

func (s *Scanner) UpdateTargetLanguage(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.targetLanguage = tag
	s.mu.Unlock()
	return nil
}

// Scan walks all roots. Missing roots are skipped so a temporarily
// unmounted share does not fail the whole scan.
func (s *Scanner) Scan(ctx context.Context) ([]Item, error) {
	s.mu.RLock()
	target := s.targetLanguage
	s.mu.RUnlock()

	ret := make([]Item, 0)
	for _, root := range s.roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		videos, err := findVideoFiles(root)
		if err != nil {
			return nil, err
		}
		for _, videoPath := range videos {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			baseName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
			sourceSubs, targetSubs, langs, err := findSiblingSubtitles(filepath.Dir(videoPath), baseName, target)
			if err != nil {
				return nil, err
			}

			item := Item{
				VideoPath:           videoPath,
				SourceSubtitleFiles: sourceSubs,
				TargetSubtitleFiles: targetSubs,
				Languages:           langs,
			}
			// Only SRT sources feed the translator; a video whose only
			// sibling is e.g. an .ass file still needs transcription.
			if len(targetSubs) == 0 {
				if item.SourceSubtitle() != "" {
					item.Translatable = true
				} else {
					item.NeedsTranscription = true
				}
			}
			ret = append(ret, item)
		}
	}
	return ret, nil
}

var subtitleExts = []string{
	".srt", ".ass", ".ssa", ".vtt", ".sub",
}

var videoExts = []string{
	".mkv", ".mp4", ".m4v", ".mov", ".avi", ".wmv", ".flv", ".webm",
	".ogv", ".ts", ".m2ts", ".mts", ".mpg", ".mpeg",
}

func findVideoFiles(root string) ([]string, error) {
	ret := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if slices.Contains(videoExts, ext) {
			ret = append(ret, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// findSiblingSubtitles collects subtitles in dir whose stem matches the
// video's, split into target-language files and everything else.
func findSiblingSubtitles(dir string, videoBase string, target language.Tag) (sourceSubs []string, targetSubs []string, languages []string, err error) {
	sourceSubs = make([]string, 0)
	targetSubs = make([]string, 0)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.Contains(subtitleExts, ext) {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if !subtitleMatchesVideoBase(stem, videoBase) {
			continue
		}

		token := subtitleLangToken(stem, videoBase)
		if lang := normalizeLangCode(token); lang != "" && !seen[lang] {
			seen[lang] = true
			languages = append(languages, lang)
		}

		fullPath := filepath.Join(dir, name)
		if token != "" && isTargetLanguage(token, target) {
			targetSubs = append(targetSubs, fullPath)
			continue
		}
		sourceSubs = append(sourceSubs, fullPath)
	}

	return sourceSubs, targetSubs, languages, nil
}

// subtitleLangToken extracts the language token from a subtitle stem,
// e.g. "episode.ja" with video base "episode" yields "ja".
func subtitleLangToken(stem, videoBase string) string {
	remain := strings.TrimPrefix(stem, videoBase)
	remain = strings.TrimLeft(remain, "._- ")
	if remain == "" {
		return ""
	}

	parts := strings.FieldsFunc(remain, func(r rune) bool {
		return r == '.' || r == '_' || r == ' '
	})
	for i := len(parts) - 1; i >= 0; i-- {
		token := strings.ToLower(parts[i])
		if isLanguageToken(token) {
			return token
		}
	}
	return ""
}

// normalizeLangCode validates a language token and returns its normalized
// ISO 639-1 base code (e.g. "fre"→"fr", "eng"→"en", "chi"→"zh").
// Returns "" if the token is not a recognized language code.
func normalizeLangCode(token string) string {
	if token == "" {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func isTargetLanguage(token string, target language.Tag) bool {
	token = strings.ToLower(strings.ReplaceAll(token, "_", "-"))
	if token == "" {
		return false
	}

	base, _ := target.Base()
	targetBase := strings.ToLower(base.String())
	if token == targetBase || strings.HasPrefix(token, targetBase+"-") {
		return true
	}

	// common aliases
	switch targetBase {
	case "zh":
		return token == "chi" || token == "chs" || token == "cht"
	case "en":
		return token == "eng"
	}

	return false
}

func subtitleMatchesVideoBase(stem, videoBase string) bool {
	if stem == videoBase {
		return true
	}
	if !strings.HasPrefix(stem, videoBase) || len(stem) <= len(videoBase) {
		return false
	}
	switch stem[len(videoBase)] {
	case '.', '_', '-', ' ':
		return true
	default:
		return false
	}
}

func isLanguageToken(token string) bool {
	if token == "" {
		return false
	}
	if normalizeLangCode(token) != "" {
		return true
	}
	switch token {
	case "chs", "cht":
		return true
	default:
		return false
	}
}

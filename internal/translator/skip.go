package translator

import (
	"regexp"
	"strings"
)

// Sound effects, stage directions and music marks pass through
// untranslated: [拍手], (ため息), （笑）, ♪～
var skipLineRe = regexp.MustCompile(`^\s*(\[.*?\]|\(.*?\)|（.*?）|♪.*)\s*$`)

// ShouldSkip reports whether a cue's text needs no translation.
// A multi-line cue is skipped only when every physical line matches.
func ShouldSkip(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !skipLineRe.MatchString(line) {
			return false
		}
	}
	return true
}

package library

import (
	"path/filepath"
	"strings"
)

// Item is one video found during a scan, paired with whatever subtitles
// sit next to it.
type Item struct {
	VideoPath           string   `json:"video_path"`
	SourceSubtitleFiles []string `json:"source_subtitle_files"`
	TargetSubtitleFiles []string `json:"target_subtitle_files"`
	Languages           []string `json:"languages"`

	// Translatable means an SRT source subtitle exists but no
	// target-language one.
	Translatable bool `json:"translatable"`
	// NeedsTranscription means the video has no subtitle the translator
	// can read, so speech recognition has to produce one first.
	NeedsTranscription bool `json:"needs_transcription"`
}

// SourceSubtitle returns the subtitle to translate: the first SRT next
// to the video. Other formats are listed but not translatable, so ""
// means the item needs transcription first.
func (i Item) SourceSubtitle() string {
	for _, path := range i.SourceSubtitleFiles {
		if strings.EqualFold(filepath.Ext(path), ".srt") {
			return path
		}
	}
	return ""
}

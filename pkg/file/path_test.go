package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/video.srt", ReplaceExt("dir/video.mkv", ".srt"))
	assert.Equal(t, "dir/video.srt", ReplaceExt("dir/video.mkv", "srt"))
	assert.Equal(t, "noext.srt", ReplaceExt("noext", ".srt"))
	assert.Equal(t, "", ReplaceExt("", ".srt"))
}

func TestWithLanguageSuffix(t *testing.T) {
	assert.Equal(t, "dir/movie.zh.srt", WithLanguageSuffix("dir/movie.srt", "zh"))
	assert.Equal(t, "dir/movie.zh.srt", WithLanguageSuffix("dir/movie.srt", "ZH"))
	assert.Equal(t, "movie.en.srt", WithLanguageSuffix("movie", "en"))
}

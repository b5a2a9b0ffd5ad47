package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasExtension(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		ext      string
		expected bool
	}{
		{name: "matching extension", file: "intro.mp3", ext: ".mp3", expected: true},
		{name: "upper case file", file: "INTRO.MP3", ext: ".mp3", expected: true},
		{name: "other extension", file: "cover.jpg", ext: ".mp3", expected: false},
		{name: "extension only in the middle", file: "a.mp3.txt", ext: ".mp3", expected: false},
		{name: "no extension", file: "README", ext: ".mp3", expected: false},
		{name: "empty filter", file: "anything.wav", ext: "", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasExtension(tt.file, tt.ext))
		})
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "plain file", input: "a.mp3", expected: true},
		{name: "spaces", input: "my song.mp3", expected: true},
		{name: "empty", input: "", expected: false},
		{name: "dot", input: ".", expected: false},
		{name: "dot dot", input: "..", expected: false},
		{name: "traversal", input: "../secret.mp3", expected: false},
		{name: "subdirectory", input: "sub/a.mp3", expected: false},
		{name: "windows separator", input: `sub\a.mp3`, expected: false},
		{name: "nul byte", input: "a\x00.mp3", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidName(tt.input))
		})
	}
}

func TestTrack_PositionAt(t *testing.T) {
	trk := Track{Name: "a.mp3", Size: 1000, Duration: 100 * time.Second}

	assert.Equal(t, time.Duration(0), trk.PositionAt(0))
	assert.Equal(t, 50*time.Second, trk.PositionAt(500))
	assert.Equal(t, 100*time.Second, trk.PositionAt(5000))

	unknown := Track{Name: "b.mp3", Size: 1000}
	assert.Equal(t, time.Duration(0), unknown.PositionAt(500))
}

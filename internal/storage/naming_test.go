package storage

import (
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"lesson-1", 0, "lesson-1"},
		{"../../etc", 0, "______etc"},
		{"bài học 1", 0, "b_i_h_c_1"},
		{"  spaced  ", 0, "spaced"},
		{"a/b\\c", 0, "a_b_c"},
		{"abcdefgh", 4, "abcd"},
		{"", 0, "lesson"},
		{"\x00\x01", 0, "lesson"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"intro.mp4":     "mp4",
		"INTRO.MOV":     "mov",
		"clip.webm":     "webm",
		"noext":         "mp4",
		"archive.tar.x": "x",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ObjectName("lesson-1", "Intro.MP4", now); got != "lesson-1-1700000000123.mp4" {
		t.Errorf("ObjectName() = %q", got)
	}
	if got := BaseName("../x", now); got != "___x-1700000000123" {
		t.Errorf("BaseName() = %q", got)
	}
}

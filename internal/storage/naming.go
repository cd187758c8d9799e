package storage

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	defaultExt     = "mp4"
	maxLessonIDLen = 64
)

// SanitizeName keeps letters, digits, '-' and '_' and replaces everything else
// with '_' so the result is safe as a file name, URL segment and public id.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := b.String()
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	if cleaned == "" {
		return "lesson"
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return true
	}
	return r == '-' || r == '_'
}

// Extension returns the lower-cased extension of filename without the dot,
// or mp4 when there is none.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return defaultExt
	}
	return SanitizeName(ext, 8)
}

// BaseName is "{lessonId}-{unixMillis}", unique per lesson and millisecond.
func BaseName(lessonID string, now time.Time) string {
	return SanitizeName(lessonID, maxLessonIDLen) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ObjectName is BaseName plus the upload's extension.
func ObjectName(lessonID, filename string, now time.Time) string {
	return BaseName(lessonID, now) + "." + Extension(filename)
}

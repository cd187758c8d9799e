package playback

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSandbox_Resolve(t *testing.T) {
	root := t.TempDir()
	s, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox() error = %v", err)
	}

	got, err := s.Resolve("/videos/l1-1700000000000.mp4")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != filepath.Join(s.Root(), "l1-1700000000000.mp4") {
		t.Errorf("Resolve() = %q", got)
	}

	got, err = s.Resolve("/videos/my%20lesson.mp4")
	if err != nil || filepath.Base(got) != "my lesson.mp4" {
		t.Errorf("Resolve(encoded) = %q, %v", got, err)
	}
}

func TestSandbox_NeverEscapesRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox() error = %v", err)
	}

	inputs := []string{
		"/videos/../../../etc/passwd",
		"../../../etc/passwd",
		"/videos/..%2f..%2f..%2fetc%2fpasswd",
		"/videos/..%2F..%2Fetc%2Fpasswd",
		"/videos/%2e%2e/%2e%2e/etc/passwd",
		"/videos/a/../../secret.mp4",
		"/videos/..",
		"/videos/",
		"/etc/passwd",
		"/videos//etc/passwd",
		"/videos/..%252f..%252fetc",
	}

	for _, in := range inputs {
		got, err := s.Resolve(in)
		if err != nil {
			if err != ErrPathEscape {
				t.Errorf("Resolve(%q) error = %v, want ErrPathEscape", in, err)
			}
			continue
		}
		if !strings.HasPrefix(got, s.Root()+string(filepath.Separator)) {
			t.Errorf("Resolve(%q) = %q escapes root %q", in, got, s.Root())
		}
	}

	if _, err := s.Resolve("/videos/../../../etc/passwd"); err != ErrPathEscape {
		t.Errorf("plain traversal error = %v, want ErrPathEscape", err)
	}
}

func TestURLFor(t *testing.T) {
	if got := URLFor("l1-1.mp4"); got != "/videos/l1-1.mp4" {
		t.Errorf("URLFor() = %q", got)
	}
}

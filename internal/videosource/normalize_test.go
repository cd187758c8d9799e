package videosource

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  https://cdn.example.com/a.mp4  ", "https://cdn.example.com/a.mp4"},
		{"//cdn.example.com/a.mp4", "https://cdn.example.com/a.mp4"},
		{"www.example.com/a.mp4", "https://www.example.com/a.mp4"},
		{"youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=x", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=3", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"player.vimeo.com/video/76979871", "https://vimeo.com/76979871"},
		{"/videos/l1-1700000000000.mp4", "/videos/l1-1700000000000.mp4"},
		{"MOCK_PLACEHOLDER: Intro", "MOCK_PLACEHOLDER: Intro"},
		{"data:video/mp4;base64,AA", "data:video/mp4;base64,AA"},
		{"example.com/a.mp4", "example.com/a.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_StaysClassifiable(t *testing.T) {
	for _, in := range []string{"youtu.be/dQw4w9WgXcQ", "//cdn.example.com/a.webm", "vimeo.com/76979871"} {
		if d := Classify(NormalizeURL(in)); !d.IsValid {
			t.Errorf("Classify(NormalizeURL(%q)) = %+v, want valid", in, d)
		}
	}
}

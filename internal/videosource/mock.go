package videosource

import (
	"hash/fnv"
	"strings"
)

// LocalPrefix marks a reference to a file the local storage backend wrote.
const LocalPrefix = "/videos/"

const sampleBase = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/"

var samples = []string{
	"BigBuckBunny.mp4",
	"ElephantsDream.mp4",
	"ForBiggerBlazes.mp4",
	"ForBiggerEscapes.mp4",
	"ForBiggerFun.mp4",
	"Sintel.mp4",
	"TearsOfSteel.mp4",
}

// MockSource picks a public sample video for a placeholder title. The choice is
// stable for a given title; fallback is the next sample in the list.
func MockSource(title string) (primary, fallback string) {
	h := fnv.New32a()
	h.Write([]byte(title))
	i := int(h.Sum32() % uint32(len(samples)))
	return sampleBase + samples[i], sampleBase + samples[(i+1)%len(samples)]
}

// Sources is the player-facing view of a lesson's video.
type Sources struct {
	Primary  string `json:"primary"`
	Embed    string `json:"embed,omitempty"`
	Type     Type   `json:"type"`
	IsMock   bool   `json:"isMock"`
	Fallback string `json:"fallback,omitempty"`
}

// ResolveSources builds the player sources for a stored reference. A locally
// stored file plays from streamURL (the stored path when streamURL is empty).
// Missing or invalid references degrade to a mock sample derived from the
// lesson title so the player always has something to play.
func ResolveSources(videoURL, lessonTitle, streamURL string) Sources {
	if ref := strings.TrimSpace(videoURL); strings.HasPrefix(ref, LocalPrefix) {
		if streamURL == "" {
			streamURL = ref
		}
		return Sources{Primary: streamURL, Type: TypeFile}
	}

	d := Classify(videoURL)
	if !d.IsValid {
		d = Classify(MockPrefix + lessonTitle)
	}

	return Sources{
		Primary:  d.Primary,
		Embed:    d.Embed,
		Type:     d.Type,
		IsMock:   d.Type == TypeMock,
		Fallback: d.Fallback,
	}
}

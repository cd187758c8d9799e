package videosource

func youTubeEmbed(id string) string {
	return "https://www.youtube.com/embed/" + id + "?autoplay=1"
}

func vimeoEmbed(id string) string {
	return "https://player.vimeo.com/video/" + id + "?autoplay=1"
}

// EmbedURL returns the autoplaying player URL for youtube and vimeo references,
// or "" for anything else.
func EmbedURL(raw string) string {
	d := Classify(raw)
	if !d.IsValid {
		return ""
	}
	return d.Embed
}

// CanonicalURL returns the public page URL a browser should be sent to for
// provider-hosted references.
func CanonicalURL(d Descriptor) string {
	switch d.Type {
	case TypeYouTube:
		if d.VideoID != "" {
			return "https://www.youtube.com/watch?v=" + d.VideoID
		}
	case TypeVimeo:
		if d.VideoID != "" {
			return "https://vimeo.com/" + d.VideoID
		}
	}
	return d.Primary
}

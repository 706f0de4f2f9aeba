package scrape

import "strings"

// ContentType is the closed set of normalized post types.
type ContentType string

const (
	TypeReel     ContentType = "Reel"
	TypeCarousel ContentType = "Carousel"

	// TypeUnknown is the intermediate classification for labels the
	// table cannot decide on its own; it never leaves this package.
	TypeUnknown ContentType = "Unknown"
)

// NormalizeContentType maps a provider type label to the closed enum.
// The table is evaluated in order: explicit video labels win, explicit
// image/carousel labels next, and the ambiguous "post" label (or
// anything unrecognized) is classified Unknown and resolved by the
// presence of a video URL.
func NormalizeContentType(rawLabel string, hasVideo bool) ContentType {
	resolved := classifyLabel(rawLabel)
	if resolved != TypeUnknown {
		return resolved
	}
	if hasVideo {
		return TypeReel
	}
	return TypeCarousel
}

func classifyLabel(rawLabel string) ContentType {
	switch strings.ToLower(strings.TrimSpace(rawLabel)) {
	case "video", "reel":
		return TypeReel
	case "sidecar", "carousel", "image":
		return TypeCarousel
	case "post":
		return TypeUnknown
	default:
		return TypeUnknown
	}
}

// Package imagesource chooses which URL variant of an attachment to download
// for description generation.
//
// Slack supplies pre-resized thumbnail tiers alongside the full-size private
// URL. The 800px tier is the sweet spot: large enough for the model to see
// detail, small enough to keep download and encode time inside the pipeline
// budget. Smaller tiers are acceptable fallbacks; the full-size original is
// last resort since it may be tens of megabytes.
package imagesource

import "github.com/fpang/alt-text-bot/internal/slackevent"

// Kind classifies the chosen URL so the pipeline can skip recompression when
// a pre-resized thumbnail is already at or below the target dimensions.
type Kind int

const (
	// KindThumbnail is a platform pre-resized variant.
	KindThumbnail Kind = iota
	// KindFullSize is the original upload.
	KindFullSize
)

// Source is the selected download target for one attachment.
type Source struct {
	URL  string
	Kind Kind
}

// Select returns the smallest pre-resized variant that still meets the
// minimum-utility threshold: the 800px tier first, then progressively
// smaller tiers, then the full-size URL. Returns nil when the attachment
// carries no URL at all.
func Select(f *slackevent.File) *Source {
	for _, url := range []string{f.Thumb800, f.Thumb720, f.Thumb480, f.Thumb360} {
		if url != "" {
			return &Source{URL: url, Kind: KindThumbnail}
		}
	}
	if f.URLPrivate != "" {
		return &Source{URL: f.URLPrivate, Kind: KindFullSize}
	}
	return nil
}

// IsThumbnail reports whether the source is a pre-resized variant.
func (s *Source) IsThumbnail() bool {
	return s.Kind == KindThumbnail
}

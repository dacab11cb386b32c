// Package suggest generates accessibility description suggestions for images.
//
// Two backends implement Generator: an HTTP client for the dedicated
// suggestion API, and a direct Gemini client for deployments that have a
// Gemini key but no suggestion-API endpoint. Callers treat the backends
// interchangeably; the webhook wiring picks one at startup based on which
// credentials are configured.
package suggest

import (
	"context"
	"strings"
)

// Request carries one image to describe.
type Request struct {
	Image    []byte
	MIMEType string
	Filename string

	// MetadataContext is optional EXIF-derived context (capture date, GPS)
	// appended to the user prompt. Empty when extraction failed or the image
	// carried no metadata.
	MetadataContext string
}

// Generator produces an alt-text suggestion for an image. Implementations
// return an error wrapping retry.ErrRateLimited when the backend throttled
// the call, so the retry policy can pick the longer backoff.
type Generator interface {
	Describe(ctx context.Context, req Request) (string, error)
}

// normalizeAltText trims the model output and rejects blank results.
func normalizeAltText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	return text, text != ""
}

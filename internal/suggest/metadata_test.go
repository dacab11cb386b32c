package suggest

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestExtractMetadataContext_NoEXIF(t *testing.T) {
	// Platform thumbnails are re-encoded without EXIF; extraction must
	// quietly yield nothing.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	if got := ExtractMetadataContext(buf.Bytes()); got != "" {
		t.Errorf("expected empty context for EXIF-less image, got %q", got)
	}
}

func TestExtractMetadataContext_Garbage(t *testing.T) {
	if got := ExtractMetadataContext([]byte("not an image at all")); got != "" {
		t.Errorf("expected empty context for undecodable data, got %q", got)
	}
}

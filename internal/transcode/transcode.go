// Package transcode recompresses downloaded images before they are sent to
// the generation API.
//
// Full-size uploads can be tens of megabytes; the model does not need that.
// Images are resized to a fixed target width using pure Go
// (golang.org/x/image/draw) and re-encoded as JPEG at a fixed quality. The
// recompressed bytes are adopted only when they are actually smaller than the
// input — recompressing an already well-compressed image can grow it.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	// TargetWidth is the fixed resize width.
	TargetWidth = 800

	// JPEGQuality is the fixed re-encode quality.
	JPEGQuality = 80

	// SmallFileCeiling marks inputs that skip recompression entirely when the
	// source was already a pre-resized thumbnail.
	SmallFileCeiling = 3 << 20 // 3 MB
)

// Result holds the bytes chosen for submission and their MIME type.
type Result struct {
	Data     []byte
	MIMEType string
	// Recompressed is true when the resized re-encode was adopted.
	Recompressed bool
}

// Recompress resizes the image to TargetWidth (preserving aspect ratio, never
// upscaling) and re-encodes it as JPEG. The original bytes are returned
// unchanged when decoding fails is not tolerated — callers decide what to do
// with the error — or when the re-encode did not shrink the payload.
func Recompress(data []byte, mimeType string) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("transcode: decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth := origWidth
	newHeight := origHeight
	if origWidth > TargetWidth {
		newWidth = TargetWidth
		newHeight = int(float64(origHeight) * float64(TargetWidth) / float64(origWidth))
	}

	var encoded bytes.Buffer
	if newWidth == origWidth {
		// No resize needed; re-encode in place to normalise format and quality.
		if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("transcode: encode JPEG: %w", err)
		}
	} else {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		if err := jpeg.Encode(&encoded, resized, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("transcode: encode JPEG: %w", err)
		}
	}

	log.Debug().
		Str("format", format).
		Int("origWidth", origWidth).
		Int("newWidth", newWidth).
		Int("inputSize", len(data)).
		Int("outputSize", encoded.Len()).
		Msg("Image recompressed")

	// Adopt the re-encode only when it shrank the payload.
	if encoded.Len() >= len(data) {
		return &Result{Data: data, MIMEType: mimeType, Recompressed: false}, nil
	}
	return &Result{Data: encoded.Bytes(), MIMEType: "image/jpeg", Recompressed: true}, nil
}

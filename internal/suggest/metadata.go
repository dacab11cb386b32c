package suggest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ExtractMetadataContext pulls EXIF capture date and GPS coordinates out of
// the image bytes and formats them as prompt context. Extraction is strictly
// best-effort: thumbnails usually carry no EXIF, and a failure here must
// never cost a suggestion, so all errors collapse to an empty string.
func ExtractMetadataContext(data []byte) string {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Trace().Err(err).Msg("No EXIF metadata extracted")
		return ""
	}

	var sb strings.Builder

	if !exifData.DateTimeOriginal().IsZero() {
		sb.WriteString(fmt.Sprintf("Taken: %s\n", exifData.DateTimeOriginal().Format("Monday, January 2, 2006")))
	}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		sb.WriteString(fmt.Sprintf("GPS: %.6f, %.6f\n", gps.Latitude(), gps.Longitude()))
	}

	if sb.Len() == 0 {
		return ""
	}
	return "Known image metadata (use only if it helps describe the scene):\n" + sb.String()
}

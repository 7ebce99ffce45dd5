package gallery

import (
	"bytes"
	"image"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo is what the decoder header tells us about an upload.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// InspectImage reads only the image header.
func InspectImage(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// GuessHeight maps an aspect ratio onto the grid size hints.
func GuessHeight(width, height int) Height {
	if width <= 0 || height <= 0 {
		return HeightMedium
	}
	ratio := float64(height) / float64(width)
	switch {
	case ratio >= 1.15:
		return HeightTall
	case ratio <= 0.75:
		return HeightShort
	default:
		return HeightMedium
	}
}

// contentTypeOf trusts the declared type when it is specific, otherwise sniffs.
func contentTypeOf(f File) string {
	declared := strings.ToLower(strings.TrimSpace(f.ContentType))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(f.Data)
}

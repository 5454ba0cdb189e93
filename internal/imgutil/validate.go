// Package imgutil validates that fetched image bytes are a genuine,
// decodable image. The content-addressed uploader calls it on each
// fetched image and logs the outcome; a failed validation does not stop
// the upload.
package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info describes a decoded image.
type Info struct {
	Width  int
	Height int
	Format string
}

// Validate decodes data fully (not just the header) and returns its
// dimensions and format, or an error if the bytes are not a supported,
// decodable image.
func Validate(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode image config: %w", err)
	}

	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return Info{}, fmt.Errorf("decode image: %w", err)
	}

	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

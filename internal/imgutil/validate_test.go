package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestValidateAcceptsPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}

	info, err := Validate(buf.Bytes())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if info.Width != 4 || info.Height != 4 {
		t.Fatalf("got %dx%d, want 4x4", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Fatalf("got format %q, want png", info.Format)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := Validate([]byte("not an image")); err == nil {
		t.Fatalf("expected an error for non-image bytes")
	}
}

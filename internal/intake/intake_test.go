package intake

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 7 {
		for y := 0; y < height; y += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeDownscalesToBound(t *testing.T) {
	n := New(Options{MaxDimension: 256})

	out, err := n.Normalize("image/png", encodePNG(t, 1600, 800))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	w, h, err := Bounds(out)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if w > 256 || h > 256 {
		t.Fatalf("expected dimensions within 256, got %dx%d", w, h)
	}
	// 2:1 input must stay 2:1 within rounding.
	if w != 256 || h != 128 {
		t.Fatalf("expected 256x128 preserving aspect ratio, got %dx%d", w, h)
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	n := New(Options{MaxDimension: 1024})

	out, err := n.Normalize("image/jpeg", encodeJPEG(t, 200, 300))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	w, h, err := Bounds(out)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if w != 200 || h != 300 {
		t.Fatalf("expected original 200x300 untouched, got %dx%d", w, h)
	}
}

func TestNormalizeRejectsDisallowedType(t *testing.T) {
	n := New(Options{})

	_, err := n.Normalize("image/webp", encodePNG(t, 10, 10))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestNormalizeRejectsOversizeBeforeDecode(t *testing.T) {
	n := New(Options{MaxBytes: 1 << 10})

	// Garbage bytes: if the size check ran after decoding this would be a
	// DecodeError instead.
	big := bytes.Repeat([]byte{0xAB}, 2<<10)
	_, err := n.Normalize("image/jpeg", big)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError for oversize file, got %v", err)
	}
}

func TestNormalizeSixMegabyteJPEGRejected(t *testing.T) {
	n := New(Options{})

	big := bytes.Repeat([]byte{0xFF}, 6<<20)
	_, err := n.Normalize("image/jpeg", big)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected size-limit ValidationError, got %v", err)
	}
}

func TestNormalizeCorruptFileIsDecodeError(t *testing.T) {
	n := New(Options{})

	_, err := n.Normalize("image/png", []byte("definitely not a png"))
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatal("decode failure must not be reported as a validation failure")
	}
}

func TestNormalizeProducesDataURI(t *testing.T) {
	n := New(Options{})

	out, err := n.Normalize("image/png", encodePNG(t, 50, 50))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !bytes.HasPrefix([]byte(out), []byte("data:image/jpeg;base64,")) {
		t.Fatalf("expected jpeg data URI, got prefix %q", out[:32])
	}
}

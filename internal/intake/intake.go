// Package intake validates and normalizes user-selected photos into a
// compact encoded form that can travel inside a JSON request body.
package intake

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

const (
	defaultMaxBytes     = 5 << 20 // 5MiB, checked before any decode work
	defaultMaxDimension = 1024
	defaultJPEGQuality  = 85
)

// allowedTypes is the explicit allow-list of accepted upload content types.
var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
}

// ValidationError reports an upload rejected before decoding: wrong type or
// too large. The user must reselect a file.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid upload: " + e.Reason
}

// DecodeError reports a file that passed validation but could not be decoded
// (corrupt data, codec mismatch at runtime).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode upload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxBytes     int64
	MaxDimension int
	JPEGQuality  int
}

// Normalizer downscales and re-encodes uploads so the payload stays bounded
// regardless of what the user picked.
type Normalizer struct {
	maxBytes     int64
	maxDimension int
	jpegQuality  int
}

func New(opts Options) *Normalizer {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	maxDim := opts.MaxDimension
	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}

	return &Normalizer{
		maxBytes:     maxBytes,
		maxDimension: maxDim,
		jpegQuality:  quality,
	}
}

// Normalize validates the upload, downscales it to fit the configured
// bounding box while preserving aspect ratio, and returns a JPEG data URI.
// Images already inside the bound are re-encoded but never upscaled.
func (n *Normalizer) Normalize(contentType string, data []byte) (string, error) {
	if _, ok := allowedTypes[contentType]; !ok {
		return "", &ValidationError{
			Reason: fmt.Sprintf("unsupported file type %q, use JPG, JPEG, PNG or GIF", contentType),
		}
	}

	if int64(len(data)) > n.maxBytes {
		return "", &ValidationError{
			Reason: fmt.Sprintf("file is %d bytes, the limit is %d", len(data), n.maxBytes),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &DecodeError{Err: err}
	}

	// Fit only shrinks, keeping the aspect ratio intact.
	resized := imaging.Fit(img, n.maxDimension, n.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(n.jpegQuality)); err != nil {
		return "", &DecodeError{Err: err}
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Bounds reports the decoded pixel dimensions of a normalized data URI.
// Used by tests and diagnostics.
func Bounds(dataURI string) (width, height int, err error) {
	const prefix = "data:image/jpeg;base64,"
	if len(dataURI) < len(prefix) || dataURI[:len(prefix)] != prefix {
		return 0, 0, fmt.Errorf("not a normalized data URI")
	}

	raw, err := base64.StdEncoding.DecodeString(dataURI[len(prefix):])
	if err != nil {
		return 0, 0, fmt.Errorf("decode payload: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}

	return cfg.Width, cfg.Height, nil
}

// Package storage holds the content store implementations. Raw bytes
// live under opaque generated keys, metadata never embeds real paths
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

var (
	// ErrNotFound means a key the catalog references has no content
	// behind it. Under normal operation this never happens
	ErrNotFound = errors.New("content not found")

	// ErrUnsupportedFormat means the source bytes can't be decoded as
	// an image. Retrying won't fix that
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

type Store interface {
	// Write persists data under a freshly generated key. Existing
	// keys are never overwritten
	Write(ctx context.Context, data []byte) (string, error)

	// Read streams the content stored under key
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Derive writes a resized copy of the image under key to the
	// deterministic location DeriveKey(key, width). Re-deriving the
	// same pair overwrites with an equivalent result
	Derive(ctx context.Context, key string, width int) (string, error)
}

// DeriveKey returns the location a thumbnail of the given width is
// stored under
func DeriveKey(key string, width int) string {
	return fmt.Sprintf("%s_%d", key, width)
}

// makeThumbnail decodes src, scales it down to fit a width x width box
// and re-encodes it in the source format
func makeThumbnail(src []byte, width int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnsupportedFormat)
	}

	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnsupportedFormat)
	}

	thumb := imaging.Fit(img, width, width, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, f); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail, %w", err)
	}

	return buf.Bytes(), nil
}

// Package codec decodes product images into pixels and encodes matted results
// back to PNG, the only output format that keeps the alpha channel.
package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MimePNG = "image/png"

	// MaxDimension caps width/height before any pixel buffer is allocated,
	// corrupted headers can claim absurd sizes.
	MaxDimension = 32768
	// MaxPixels bounds the total pixel count (64MP keeps RGBA buffers under 256MB).
	MaxPixels int64 = 64 * 1024 * 1024
)

var uploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var decodableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Sniff returns the detected MIME type of data.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsAllowedUpload reports whether mime is one of the upload formats accepted from users.
func IsAllowedUpload(mime string) bool {
	return uploadTypes[mime]
}

func validateBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > MaxPixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, MaxPixels)
	}
	return nil
}

// Decode parses raw image bytes. Every failure is a *DecodeError.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: errors.New("empty input")}
	}
	mime := Sniff(data)
	if !decodableTypes[mime] {
		return nil, "", &DecodeError{Format: mime, Err: errors.New("unsupported format")}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Format: mime, Err: errors.Wrap(err, "image.DecodeConfig")}
	}
	if err := validateBounds(cfg.Width, cfg.Height); err != nil {
		return nil, format, &DecodeError{Format: format, Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, &DecodeError{Format: mime, Err: errors.Wrap(err, "image.Decode")}
	}
	return img, format, nil
}

var encoder = png.Encoder{
	CompressionLevel: png.DefaultCompression,
	BufferPool:       sharedBufferPool,
}

// EncodePNG serialises img as PNG. Every failure is an *EncodeError.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &EncodeError{Err: errors.New("nil image")}
	}
	buf := &bytes.Buffer{}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}

type bufferPool sync.Pool

var _ png.EncoderBufferPool = (*bufferPool)(nil)

var sharedBufferPool = (*bufferPool)(&sync.Pool{
	New: func() any {
		return &png.EncoderBuffer{}
	},
})

func (bp *bufferPool) Get() *png.EncoderBuffer {
	return (*sync.Pool)(bp).Get().(*png.EncoderBuffer)
}

func (bp *bufferPool) Put(eb *png.EncoderBuffer) {
	(*sync.Pool)(bp).Put(eb)
}

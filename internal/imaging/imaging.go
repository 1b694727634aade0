// Package imaging validates and normalizes inbound images before they are
// forwarded upstream: base64 data-URL decode, size cap, downscale to fit a
// bounded box, JPEG re-encode.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Processing bounds.
const (
	// MaxInputBytes caps the decoded payload size.
	MaxInputBytes = 10 << 20
	// maxDimension is the bounding box edge for downscaling.
	maxDimension = 2048
	// jpegQuality is the re-encode quality.
	jpegQuality = 85
)

// ErrTooLarge indicates the decoded image exceeds MaxInputBytes.
var ErrTooLarge = errors.New("imaging: image too large, maximum size is 10MB")

// Processed is a normalized image ready for the provider.
type Processed struct {
	MIMEType string
	Data     []byte
}

// Process decodes a base64 image (with or without a data-URL prefix),
// enforces the size cap, downscales to fit maxDimension, and re-encodes as
// JPEG.
func Process(imageData string) (*Processed, error) {
	payload := imageData
	if idx := strings.Index(payload, ","); idx >= 0 {
		payload = payload[idx+1:]
	}

	raw, errDecode := base64.StdEncoding.DecodeString(payload)
	if errDecode != nil {
		return nil, fmt.Errorf("imaging: decode base64: %w", errDecode)
	}
	if len(raw) > MaxInputBytes {
		return nil, ErrTooLarge
	}

	img, _, errImage := image.Decode(bytes.NewReader(raw))
	if errImage != nil {
		return nil, fmt.Errorf("imaging: decode image: %w", errImage)
	}

	img = downscale(img)

	var buf bytes.Buffer
	if errEncode := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); errEncode != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", errEncode)
	}
	return &Processed{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

// downscale shrinks the image to fit within maxDimension on both axes,
// preserving aspect ratio. Images already within bounds pass through.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDimension && height <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(width)
	if height > width {
		scale = float64(maxDimension) / float64(height)
	}
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

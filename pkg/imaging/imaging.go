// Package imaging holds the pure image pipeline: decode, bounded downscale,
// format-preserving re-encode. Everything here is deterministic so the
// transform stays idempotent under duplicate notification delivery.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp"
)

// JPEGQuality is applied whenever a resized image is re-encoded as JPEG.
const JPEGQuality = 90

type Processor struct {
	log *zap.Logger
}

func NewProcessor(log *zap.Logger) *Processor {
	return &Processor{log: log}
}

// Decode parses the bytes as an image and reports the detected format
// ("jpeg", "png", "gif", "bmp", "webp"). Failure means the upload was not a
// valid image at all.
func (p *Processor) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// FitWithin downscales img so its longer edge equals bound, preserving aspect
// ratio with the shorter edge floored to whole pixels (at least 1). Images
// already within the bound are returned untouched; there is no upscaling.
func (p *Processor) FitWithin(img image.Image, bound int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= bound && h <= bound {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = bound
		nh = h * bound / w
	} else {
		nh = bound
		nw = w * bound / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	p.log.Debug("Image resized",
		zap.Int("original_width", w),
		zap.Int("original_height", h),
		zap.Int("width", nw),
		zap.Int("height", nh))

	return dst
}

// Encode re-encodes img in the detected source format. Unknown formats and
// webp (decode-only) fall back to PNG. JPEG cannot carry an alpha channel, so
// transparent or palette-based images are flattened onto white first.
func (p *Processor) Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: JPEGQuality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		p.log.Debug("No encoder for detected format, falling back to PNG",
			zap.String("format", format))
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// flatten composites non-opaque images over a white background so lossy
// alpha-less encodings don't render transparent regions as black.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
	return flat
}

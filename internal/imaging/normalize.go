package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/hpungsan/fishscroll/internal/errors"
)

const (
	// DefaultMaxDimension is the default bound on the longer image edge, in pixels.
	DefaultMaxDimension = 1024

	// DefaultQuality is the default JPEG quality on the 0-1 scale.
	DefaultQuality = 0.85

	// MaxPixels bounds the declared canvas of an input image. Larger images
	// are refused before their pixels are decoded.
	MaxPixels = 50_000_000
)

// Normalize decodes a data URI image, downscales it so that its longer edge
// is at most maxDimension, and re-encodes it as a JPEG data URI at the given
// quality (0 < quality <= 1). Images already within bounds keep their
// dimensions; nothing is upsampled.
func Normalize(img string, maxDimension int, quality float64) (string, error) {
	if maxDimension <= 0 {
		return "", errors.NewInvalidRequest(fmt.Sprintf("max dimension must be positive, got %d", maxDimension))
	}
	if quality <= 0 || quality > 1 {
		return "", errors.NewInvalidRequest(fmt.Sprintf("quality must be in (0,1], got %v", quality))
	}

	uri, err := ParseDataURI(img)
	if err != nil {
		return "", errors.NewDecode(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(uri.Data))
	if err != nil {
		return "", errors.NewDecode(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", errors.NewDecode(fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, MaxPixels))
	}
	src, _, err := image.Decode(bytes.NewReader(uri.Data))
	if err != nil {
		return "", errors.NewDecode(err)
	}

	b := src.Bounds()
	if b.Empty() {
		return "", errors.NewRender(fmt.Errorf("image has empty bounds %v", b))
	}

	w, h := TargetSize(b.Dx(), b.Dy(), maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	// JPEG has no alpha channel; transparent regions become white.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return "", errors.NewRender(err)
	}

	return EncodeDataURI("image/jpeg", buf.Bytes()), nil
}

// TargetSize computes output dimensions for a w x h image bounded by limit.
// When the longer edge exceeds limit, it becomes exactly limit and the
// shorter edge is scaled by the same factor, rounded, and kept at least 1.
func TargetSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		short := int(math.Round(float64(h) * float64(limit) / float64(w)))
		return limit, clampMin(short)
	}
	short := int(math.Round(float64(w) * float64(limit) / float64(h)))
	return clampMin(short), limit
}

func clampMin(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

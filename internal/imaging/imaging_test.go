package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/fishscroll/internal/errors"
)

func pngDataURI(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return EncodeDataURI("image/png", buf.Bytes())
}

func decodeJPEG(t *testing.T, uri string) image.Image {
	t.Helper()
	d, err := ParseDataURI(uri)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", d.MIME)
	img, err := jpeg.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	return img
}

func TestNormalize_DownscalesLandscape(t *testing.T) {
	in := pngDataURI(t, 2000, 1500, color.RGBA{R: 200, G: 40, B: 40, A: 255})

	out, err := Normalize(in, DefaultMaxDimension, DefaultQuality)
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	require.Equal(t, 1024, b.Dx())
	require.Equal(t, 768, b.Dy())
}

func TestNormalize_DownscalesPortrait(t *testing.T) {
	in := pngDataURI(t, 300, 1000, color.Black)

	out, err := Normalize(in, 500, 0.9)
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	require.Equal(t, 150, b.Dx())
	require.Equal(t, 500, b.Dy())
}

func TestNormalize_NeverUpsamples(t *testing.T) {
	in := pngDataURI(t, 640, 480, color.White)

	out, err := Normalize(in, DefaultMaxDimension, DefaultQuality)
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	require.Equal(t, 640, b.Dx())
	require.Equal(t, 480, b.Dy())
}

func TestNormalize_FlattensTransparencyOntoWhite(t *testing.T) {
	in := pngDataURI(t, 8, 8, color.NRGBA{})

	out, err := Normalize(in, DefaultMaxDimension, 1)
	require.NoError(t, err)

	r, g, b, _ := decodeJPEG(t, out).At(4, 4).RGBA()
	require.Greater(t, r>>8, uint32(240))
	require.Greater(t, g>>8, uint32(240))
	require.Greater(t, b>>8, uint32(240))
}

func TestNormalize_InvalidParams(t *testing.T) {
	in := pngDataURI(t, 2, 2, color.White)

	_, err := Normalize(in, 0, DefaultQuality)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Normalize(in, 100, 0)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Normalize(in, 100, 1.5)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNormalize_DecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		image string
	}{
		{"not a data uri", "hello"},
		{"bad base64", "data:image/png;base64,!!!"},
		{"not an image", EncodeDataURI("text/plain", []byte("just some text"))},
		{"url encoded", "data:image/png,abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.image, DefaultMaxDimension, DefaultQuality)
			require.True(t, errors.Is(err, errors.ErrDecode), "got %v", err)
		})
	}
}

// hugeHeaderPNG returns a tiny PNG whose IHDR claims a w x h canvas.
func hugeHeaderPNG(t *testing.T, w, h uint32) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()

	// signature(8) + length(4) + "IHDR"(4), then width and height
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return EncodeDataURI("image/png", data)
}

func TestNormalize_RejectsOversizedCanvas(t *testing.T) {
	img := hugeHeaderPNG(t, 16000, 16000)
	require.Less(t, EstimateSizeKB(img), 1)

	_, err := Normalize(img, DefaultMaxDimension, DefaultQuality)
	require.True(t, errors.Is(err, errors.ErrDecode), "got %v", err)
	require.Contains(t, err.Error(), "pixel limit")
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{4000, 3000, 1024, 1024, 768},
		{3000, 4000, 1024, 768, 1024},
		{1024, 1024, 1024, 1024, 1024},
		{2048, 2048, 1024, 1024, 1024},
		{5000, 1, 1000, 1000, 1},
		{100, 50, 1024, 100, 50},
		{1500, 1001, 1000, 1000, 667},
	}

	for _, tt := range tests {
		w, h := TargetSize(tt.w, tt.h, tt.limit)
		require.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		require.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestParseDataURI(t *testing.T) {
	d, err := ParseDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "image/png", d.MIME)
	require.Equal(t, []byte("hello"), d.Data)

	d, err = ParseDataURI("data:;base64,aGVsbG8")
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", d.MIME)
	require.Equal(t, []byte("hello"), d.Data)

	_, err = ParseDataURI("data:image/png;base64")
	require.Error(t, err)
}

func TestEncodeDataURI_SniffsMIME(t *testing.T) {
	uri := EncodeDataURI("", []byte("plain words"))
	require.True(t, strings.HasPrefix(uri, "data:text/plain;base64,"))
}

func TestEstimateSizeKB(t *testing.T) {
	payload := strings.Repeat("A", 4096)
	require.Equal(t, 3, EstimateSizeKB("data:image/jpeg;base64,"+payload))
	require.Equal(t, 0, EstimateSizeKB("data:image/jpeg;base64,"))
}

package archive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/fishscroll/internal/fish"
)

type putCall struct {
	bucket, key, contentType string
	size                     int64
	body                     []byte
}

type fakeUploader struct {
	calls  []putCall
	failOn string // key suffix that fails
}

func (u *fakeUploader) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	u.calls = append(u.calls, putCall{bucket: bucket, key: key, contentType: opts.ContentType, size: size, body: body})
	if u.failOn != "" && strings.HasSuffix(key, u.failOn) {
		return minio.UploadInfo{}, fmt.Errorf("access denied")
	}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func testAnalysis() *fish.Analysis {
	return &fish.Analysis{
		FishName:        "참돔",
		FishNameEn:      "Red Seabream",
		FishNameJp:      "マダイ",
		Confidence:      88,
		Characteristics: []string{"분홍빛 껍질"},
		Taste:           "감칠맛",
		Texture:         "쫄깃함",
		Season:          "봄",
		Price:           fish.PricePremium,
		Recommendations: []string{"간장"},
		Nutrition:       "고단백",
	}
}

func fixedClock() time.Time {
	return time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
}

func TestArchive_UploadsImageAndAnalysis(t *testing.T) {
	up := &fakeUploader{}
	s := newStore(up, "fish", fixedClock)
	raw := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	prefix, err := s.Archive(context.Background(), image, testAnalysis())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(prefix, "captures/2025/04/02/"), prefix)
	require.Len(t, up.calls, 2)

	img := up.calls[0]
	require.Equal(t, "fish", img.bucket)
	require.Equal(t, prefix+"/image.jpg", img.key)
	require.Equal(t, "image/jpeg", img.contentType)
	require.Equal(t, raw, img.body)
	require.Equal(t, int64(len(raw)), img.size)

	rec := up.calls[1]
	require.Equal(t, prefix+"/analysis.json", rec.key)
	require.Equal(t, "application/json", rec.contentType)
	var got fish.Analysis
	require.NoError(t, json.Unmarshal(rec.body, &got))
	require.Equal(t, "Red Seabream", got.FishNameEn)

	// Prefixes are unique even within one timestamp
	next, err := s.Archive(context.Background(), image, testAnalysis())
	require.NoError(t, err)
	require.NotEqual(t, prefix, next)
}

func TestArchive_UnknownMIMEUsesBin(t *testing.T) {
	up := &fakeUploader{}
	s := newStore(up, "fish", fixedClock)

	_, err := s.Archive(context.Background(), "data:application/octet-stream;base64,AAEC", testAnalysis())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(up.calls[0].key, "/image.bin"), up.calls[0].key)
	require.Equal(t, "application/octet-stream", up.calls[0].contentType)
}

func TestArchive_Errors(t *testing.T) {
	up := &fakeUploader{}
	s := newStore(up, "fish", fixedClock)
	_, err := s.Archive(context.Background(), "not a data uri", testAnalysis())
	require.Error(t, err)
	require.Empty(t, up.calls)

	up = &fakeUploader{failOn: "image.jpg"}
	s = newStore(up, "fish", fixedClock)
	_, err = s.Archive(context.Background(), "data:image/jpeg;base64,/9j/4AAQ", testAnalysis())
	require.ErrorContains(t, err, "access denied")
	require.Len(t, up.calls, 1, "analysis must not be uploaded after the image failed")
}

func TestKeyPrefix(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	ts := time.Date(2025, 3, 1, 2, 30, 0, 0, loc) // 2025-02-28 17:30 UTC

	require.Equal(t, "captures/2025/02/28/01JABC", KeyPrefix(ts, "01JABC"))
}

func TestExtension(t *testing.T) {
	require.Equal(t, ".jpg", Extension("image/jpeg"))
	require.Equal(t, ".webp", Extension("image/webp"))
	require.Equal(t, ".bin", Extension("text/plain"))
}

func TestConfig_Enabled(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.False(t, Config{Endpoint: "localhost:9000"}.Enabled())
	require.True(t, Config{Endpoint: "localhost:9000", Bucket: "fish"}.Enabled())
}

package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// Config holds S3-compatible connection settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether enough settings are present to archive.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// uploader is the part of *minio.Client the store needs.
type uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store uploads analyzed captures to an object storage bucket.
type Store struct {
	client uploader
	bucket string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, err
		}
	}

	return newStore(cli, cfg.Bucket, time.Now), nil
}

func newStore(client uploader, bucket string, now func() time.Time) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

// Archive stores the image and its analysis side by side under one prefix
// and returns that prefix.
func (s *Store) Archive(ctx context.Context, image string, analysis *fish.Analysis) (string, error) {
	uri, err := imaging.ParseDataURI(image)
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	record, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}

	prefix := s.nextPrefix()
	imageKey := path.Join(prefix, "image"+Extension(uri.MIME))
	if _, err := s.client.PutObject(ctx, s.bucket, imageKey, bytes.NewReader(uri.Data), int64(len(uri.Data)),
		minio.PutObjectOptions{ContentType: uri.MIME}); err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", imageKey, err)
	}

	analysisKey := path.Join(prefix, "analysis.json")
	if _, err := s.client.PutObject(ctx, s.bucket, analysisKey, bytes.NewReader(record), int64(len(record)),
		minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", analysisKey, err)
	}

	return prefix, nil
}

func (s *Store) nextPrefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy)
	return KeyPrefix(now, id.String())
}

// KeyPrefix returns captures/YYYY/MM/DD/<id>.
func KeyPrefix(t time.Time, id string) string {
	t = t.UTC()
	return path.Join("captures", t.Format("2006"), t.Format("01"), t.Format("02"), id)
}

// Extension maps an image MIME type to a file extension.
func Extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

// Package storage uploads generated images to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config for the MinIO blob store
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// PublicURL is the externally reachable base, e.g. https://cdn.example.com
	PublicURL string `yaml:"public_url"`
	Prefix    string `yaml:"prefix"`
}

// objectClient is the subset of *miniogo.Client the store uses
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts miniogo.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

// MinioStore stores blobs in a MinIO bucket and returns their public URLs
type MinioStore struct {
	client objectClient
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewMinioStore creates a MinIO-backed blob store
func NewMinioStore(cfg Config, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logger.Info("MinIO blob store initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket))

	return newMinioStore(client, cfg, logger), nil
}

func newMinioStore(client objectClient, cfg Config, logger *zap.Logger) *MinioStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "generated"
	}
	return &MinioStore{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureBucket creates the bucket if it does not exist yet
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Created bucket", zap.String("bucket", s.cfg.Bucket))
	return nil
}

// Upload stores data under a fresh key and returns its public URL
func (s *MinioStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("nothing to upload")
	}

	key := s.objectKey(contentType)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("Uploaded object to MinIO",
		zap.String("object_key", key),
		zap.Int("size", len(data)))

	return s.publicURL(key), nil
}

// objectKey has the form {prefix}/{yyyy}/{mm}/{dd}/{uuid}{ext}
func (s *MinioStore) objectKey(contentType string) string {
	return fmt.Sprintf("%s/%s/%s%s",
		strings.Trim(s.cfg.Prefix, "/"),
		s.now().UTC().Format("2006/01/02"),
		uuid.NewString(),
		extensionFor(contentType))
}

func (s *MinioStore) publicURL(key string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if s.cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + s.cfg.Endpoint
	}
	return base + "/" + s.cfg.Bucket + "/" + key
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

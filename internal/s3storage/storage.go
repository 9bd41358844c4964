// Package s3storage wraps MinIO/S3 interactions for submitted photos.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sutcoin/business/internal/config"
)

// KeyPrefix is prepended to every object key before it reaches the bucket.
const KeyPrefix = "uploads/"

// Storage uploads photo payloads and mints presigned retrieval links.
// Objects are written without any public-read grant; access happens only
// through presigned URLs.
type Storage struct {
	client    *minio.Client
	bucket    string
	region    string
	opTimeout time.Duration
}

// New creates a MinIO client from the storage config.
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		opTimeout: cfg.OpTimeout,
	}, nil
}

// EnsureBucket makes sure the target bucket exists before serving traffic.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores the payload under uploads/<key>.
func (s *Storage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, KeyPrefix+key, reader, int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}

// PresignURL returns a signed GET URL for uploads/<key> valid for ttl.
func (s *Storage) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, KeyPrefix+key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

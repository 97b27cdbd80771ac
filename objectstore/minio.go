package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore implements Store on any S3-compatible object service.
type MinIOStore struct {
	client *minio.Client
	bucket string
	host   string
}

// Config carries the connection parameters for the object service.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIOStore connects an S3-compatible client for the given bucket.
func NewMinIOStore(cfg Config) (*MinIOStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: connect: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		host:   cfg.Endpoint,
	}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	return obj, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("objectstore: presign %s: %w", key, err)
	}
	return signed.String(), nil
}

// Holds recognizes bare keys and URLs whose host matches the configured
// endpoint and whose path enters the configured bucket.
func (s *MinIOStore) Holds(ref string) bool {
	if ref == "" {
		return false
	}
	if !strings.Contains(ref, "://") {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Host, s.host) && !strings.HasSuffix(strings.ToLower(u.Host), "."+strings.ToLower(s.host)) {
		return false
	}
	return s.KeyFor(ref) != ""
}

// KeyFor strips the scheme, host, and bucket prefix from a reference.
func (s *MinIOStore) KeyFor(ref string) string {
	if !strings.Contains(ref, "://") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	path := strings.TrimPrefix(u.Path, "/")
	if strings.HasPrefix(path, s.bucket+"/") {
		return strings.TrimPrefix(path, s.bucket+"/")
	}
	// Virtual-hosted style: the bucket is part of the host.
	if strings.HasPrefix(strings.ToLower(u.Host), strings.ToLower(s.bucket)+".") {
		return path
	}
	return path
}

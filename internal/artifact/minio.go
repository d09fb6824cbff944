package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig addresses an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key, e.g. "uploads/".
	Prefix string
}

// MinioStore keeps files as objects in a single bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// host:port without scheme is treated as plain HTTP.
	return raw, false, nil
}

// NewMinioStore connects and checks that the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("artifact: minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("artifact: minio endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: minio client: %w", err)
	}

	s := &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) key(name string) string { return s.prefix + name }

func (s *MinioStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("artifact: invalid name %q", name)
	}

	if _, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{}); err == nil {
		return 0, ErrExists
	} else if !isNoSuchKey(err) {
		return 0, fmt.Errorf("artifact: stat object: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, s.key(name), r, -1,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("artifact: put object: %w", err)
	}
	return info.Size, nil
}

func (s *MinioStore) Open(ctx context.Context, name string) (*Blob, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("artifact: get object: %w", err)
	}
	// Force an early error for missing objects.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifact: stat object: %w", err)
	}

	return &Blob{
		Content:     obj,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
	}, nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("artifact: bucket check: %w", err)
	}
	if !exists {
		return fmt.Errorf("artifact: minio bucket does not exist: %s", s.bucket)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return string(resp.Code) == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

package moderation

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/resilience"
)

// MinioConfig holds the evidence bucket connection settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioEvidenceStore writes evidence snapshots to a MinIO bucket through a circuit breaker
type MinioEvidenceStore struct {
	client  *minio.Client
	bucket  string
	breaker *resilience.Breaker
}

// NewMinioEvidenceStore connects to MinIO and makes sure the evidence bucket exists
func NewMinioEvidenceStore(ctx context.Context, cfg MinioConfig, breaker *resilience.Breaker) (*MinioEvidenceStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioEvidenceStore{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: breaker,
	}, nil
}

// Put uploads one evidence object under key
func (s *MinioEvidenceStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	err := s.breaker.Execute(ctx, "put_evidence", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return apperrors.StorageError(err)
	}
	return nil
}

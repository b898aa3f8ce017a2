package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/config"
)

// SnapshotStore persists event frames. The pipeline treats snapshot
// failures as non-fatal: an event without a snapshot is still an event.
type SnapshotStore interface {
	Save(ctx context.Context, eventID string, tsMs int64, data []byte) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// MinioStore keeps snapshots in a MinIO/S3 bucket.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        *zap.Logger
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(cfg config.MinioConfig, logger *zap.Logger) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := cli.BucketExists(ctx, cfg.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("failed to create/verify bucket %s: %w", cfg.Bucket, err)
		}
	}

	logger.Info("snapshot store connected",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket))

	return &MinioStore{
		client:        cli,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        logger,
	}, nil
}

// SnapshotKey lays objects out by capture date so retention jobs can sweep
// whole prefixes.
func SnapshotKey(eventID string, tsMs int64) string {
	day := time.UnixMilli(tsMs).UTC().Format("2006-01-02")
	return fmt.Sprintf("events/raw/%s/%s.jpg", day, eventID)
}

// Save uploads the frame and returns its object key.
func (s *MinioStore) Save(ctx context.Context, eventID string, tsMs int64, data []byte) (string, error) {
	key := SnapshotKey(eventID, tsMs)

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("event_id", eventID),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return key, nil
}

// PresignedURL returns a time-limited download link for a stored snapshot.
func (s *MinioStore) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign snapshot url: %w", err)
	}
	return u.String(), nil
}

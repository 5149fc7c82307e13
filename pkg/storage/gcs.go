package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
)

// GCSStore keeps files in one Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore uses application default credentials unless a key file is set.
func NewGCSStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.GCSBucket, logger: logger.Named("storage.gcs")}, nil
}

func (s *GCSStore) prefix() string {
	return "gs://" + s.bucket + "/"
}

func (s *GCSStore) Put(ctx context.Context, companyID uuid.UUID, category, name string, data []byte) (string, error) {
	key := objectKey(companyID, category, name)

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		s.logger.Error("Failed to upload to GCS", zap.String("key", key), zap.Error(err))
		return "", externalError("upload to GCS", err)
	}
	if err := w.Close(); err != nil {
		s.logger.Error("Failed to finalize GCS upload", zap.String("key", key), zap.Error(err))
		return "", externalError("finalize GCS upload", err)
	}

	s.logger.Debug("Uploaded to GCS", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.prefix() + key, nil
}

func (s *GCSStore) Get(ctx context.Context, companyID uuid.UUID, url string) ([]byte, error) {
	key, err := keyFromURL(companyID, url, s.prefix())
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("file %q: %w", url, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, externalError("download from GCS", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, externalError("read GCS object", err)
	}
	return data, nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ FileStore = (*GCSStore)(nil)

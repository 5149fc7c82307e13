package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
)

// S3Store keeps files in one S3 (or S3-compatible) bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3Store loads the default AWS credential chain, overridden by static
// keys when configured.
func NewS3Store(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket, logger: logger.Named("storage.s3")}, nil
}

func (s *S3Store) prefix() string {
	return "s3://" + s.bucket + "/"
}

func (s *S3Store) Put(ctx context.Context, companyID uuid.UUID, category, name string, data []byte) (string, error) {
	key := objectKey(companyID, category, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.logger.Error("Failed to upload to S3", zap.String("key", key), zap.Error(err))
		return "", externalError("upload to S3", err)
	}

	s.logger.Debug("Uploaded to S3", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.prefix() + key, nil
}

func (s *S3Store) Get(ctx context.Context, companyID uuid.UUID, url string) ([]byte, error) {
	key, err := keyFromURL(companyID, url, s.prefix())
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("file %q: %w", url, apperrors.ErrNotFound)
		}
		return nil, externalError("download from S3", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, externalError("read S3 object", err)
	}
	return data, nil
}

var _ FileStore = (*S3Store)(nil)

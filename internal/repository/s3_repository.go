package repository

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/tsaihsilo/receipt-recognition-app/internal/config"
	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
)

// ObjectRepository stores receipt artifacts in the bucket the analysis
// service reads from.
type ObjectRepository interface {
	UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	StatFile(ctx context.Context, key string) (*domain.ObjectMetadata, error)
}

// s3API is the slice of the S3 client the repository calls. Tests
// substitute a stub.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3Repository struct {
	client s3API
	bucket string
	log    *zap.Logger
}

func NewS3Repository(awsCfg aws.Config, cfg *config.Config, log *zap.Logger) ObjectRepository {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
		o.UsePathStyle = cfg.AWS.UsePathStyle
	})

	return &s3Repository{
		client: client,
		bucket: cfg.Storage.Bucket,
		log:    log,
	}
}

func (r *s3Repository) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		r.log.Error("Failed to upload file to S3",
			zap.String("bucket", r.bucket),
			zap.String("key", key),
			zap.String("code", apiErrorCode(err)),
			zap.Error(err))
		return err
	}

	r.log.Info("File uploaded to S3",
		zap.String("bucket", r.bucket),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.String("contentType", contentType))

	return nil
}

func (r *s3Repository) StatFile(ctx context.Context, key string) (*domain.ObjectMetadata, error) {
	output, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		r.log.Warn("Failed to stat file in S3",
			zap.String("bucket", r.bucket),
			zap.String("key", key),
			zap.String("code", apiErrorCode(err)),
			zap.Error(err))
		return nil, err
	}

	meta := &domain.ObjectMetadata{
		ContentType:   aws.ToString(output.ContentType),
		ContentLength: aws.ToInt64(output.ContentLength),
		ETag:          aws.ToString(output.ETag),
	}
	if output.LastModified != nil {
		meta.LastModified = *output.LastModified
	}

	return meta, nil
}

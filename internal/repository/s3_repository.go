package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	s3config "github.com/oniichan80000/image-resizer/internal/config"
)

// ErrObjectNotFound reports that the requested object does not exist in the
// bucket. For retrieval this is the "not processed yet" signal.
var ErrObjectNotFound = errors.New("object not found")

// StoredObject is a fully fetched object: body, declared content type and the
// write-time metadata attached by the upload capability.
type StoredObject struct {
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// ObjectStorage is the pipeline's view of the two buckets. Presigned
// operations and Upload are scoped to the configured buckets; Download takes
// the bucket from the arrival notification since the source is untrusted.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, key, contentType string, metadata map[string]string, expiry time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error)
	Download(ctx context.Context, bucket, key string) (*StoredObject, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

type s3Repository struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     *s3config.S3Config
	log     *zap.Logger
}

// LoadAWSConfig resolves the AWS SDK configuration, honoring the optional
// static credentials used against local S3-compatible endpoints.
func LoadAWSConfig(ctx context.Context, cfg *s3config.S3Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func NewS3Repository(awsCfg aws.Config, cfg *s3config.S3Config, log *zap.Logger) ObjectStorage {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Repository{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		log:     log,
	}
}

func (r *s3Repository) PresignUpload(ctx context.Context, key, contentType string, metadata map[string]string, expiry time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.cfg.UploadBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	req, err := r.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		r.log.Error("Failed to presign upload URL",
			zap.String("key", key),
			zap.Error(err))
		return "", err
	}

	return req.URL, nil
}

func (r *s3Repository) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	// Presigning is a local signing operation that never checks existence,
	// so probe the processed bucket first to distinguish "not ready".
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.cfg.ProcessedBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrObjectNotFound
		}
		r.log.Error("Failed to stat processed object",
			zap.String("key", key),
			zap.Error(err))
		return "", err
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.ProcessedBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		r.log.Error("Failed to presign download URL",
			zap.String("key", key),
			zap.Error(err))
		return "", err
	}

	return req.URL, nil
}

func (r *s3Repository) Download(ctx context.Context, bucket, key string) (*StoredObject, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		r.log.Error("Failed to download object from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		return nil, err
	}
	defer output.Body.Close()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, err
	}

	obj := &StoredObject{
		Body:     body,
		Metadata: output.Metadata,
	}
	if output.ContentType != nil {
		obj.ContentType = *output.ContentType
	}

	return obj, nil
}

func (r *s3Repository) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.cfg.ProcessedBucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		r.log.Error("Failed to upload object to S3",
			zap.String("bucket", r.cfg.ProcessedBucket),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	r.log.Info("Object uploaded to S3",
		zap.String("bucket", r.cfg.ProcessedBucket),
		zap.String("key", key),
		zap.Int("size", len(body)))

	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

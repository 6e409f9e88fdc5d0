package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const s3Scheme = "s3://"

// S3Config holds object storage settings. Endpoint is set for
// S3-compatible services such as MinIO.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3ImageStore implements port.ImageStore on an S3 bucket. URIs have the form
// s3://bucket/key; other URIs are served by the optional fallback store.
type S3ImageStore struct {
	client   *s3.Client
	bucket   string
	prefix   string
	fallback *LocalImageStore
	logger   *zap.Logger
}

// NewS3ImageStore creates an S3-backed image store
func NewS3ImageStore(ctx context.Context, cfg S3Config, fallback *LocalImageStore, logger *zap.Logger) (*S3ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3ImageStore{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Save uploads content and returns its s3:// URI
func (s *S3ImageStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	key := path.Join(s.prefix, path.Clean("/" + name)[1:])
	if key == "" || key == s.prefix {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(mimetype.Detect(content).String()),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		s.logger.Error("Failed to upload image to S3",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.Info("Image uploaded to S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(content)))

	return s3Scheme + s.bucket + "/" + key, nil
}

// Load downloads the object behind an s3:// URI
func (s *S3ImageStore) Load(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		if s.fallback == nil {
			return nil, fmt.Errorf("unsupported image uri %q", uri)
		}
		return s.fallback.Load(ctx, uri)
	}

	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to download image from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return content, nil
}

// Delete removes the object behind an s3:// URI
func (s *S3ImageStore) Delete(ctx context.Context, uri string) error {
	if !strings.HasPrefix(uri, s3Scheme) {
		if s.fallback == nil {
			return fmt.Errorf("unsupported image uri %q", uri)
		}
		return s.fallback.Delete(ctx, uri)
	}

	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error("Failed to delete image from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri: %q", uri)
	}
	return bucket, key, nil
}

// Package storage uploads byte streams to an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/securingai/internal/logging"
)

// Uploader is the part of manager.Uploader used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newUploader = func(c *s3.Client) Uploader {
		return manager.NewUploader(c)
	}
)

// Options configures the S3 client.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	// Timeout bounds a single Upload call. Zero means no extra bound.
	Timeout time.Duration
}

type S3Service struct {
	uploader Uploader
	timeout  time.Duration
	log      logging.Logger
}

// NewS3Service builds a client with static credentials and path-style
// addressing, which MinIO and other S3-compatible servers expect.
func NewS3Service(ctx context.Context, opts Options, log logging.Logger) (*S3Service, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return NewS3ServiceWithUploader(newUploader(client), opts.Timeout, log), nil
}

func NewS3ServiceWithUploader(u Uploader, timeout time.Duration, log logging.Logger) *S3Service {
	return &S3Service{uploader: u, timeout: timeout, log: log.With("component", "s3")}
}

// Upload streams r to bucket/key and returns its s3:// URI. Any failure is
// logged and reported only through ok == false.
func (s *S3Service) Upload(ctx context.Context, r io.Reader, bucket, key string) (uri string, ok bool) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		args := []any{"bucket", bucket, "key", key, "error", err}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			args = append(args, "code", apiErr.ErrorCode())
		}
		s.log.Error(ctx, "upload failed", args...)
		return "", false
	}

	uri = AsURI(bucket, key)
	s.log.Info(ctx, "uploaded", "uri", uri)
	return uri, true
}

// AsURI formats bucket and key as an s3:// locator. Empty values yield empty
// components.
func AsURI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

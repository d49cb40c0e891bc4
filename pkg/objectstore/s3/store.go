package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/quartzlabs/wikiexport/pkg/objectstore"
)

// Store implements objectstore.Store for AWS S3 and S3-compatible storage.
type Store struct {
	client *s3.Client
	bucket string
}

var _ objectstore.Store = (*Store)(nil)

// New creates a new S3 store with the given configuration.
//
// The store uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &objectstore.StoreError{Op: "New", Bucket: cfg.Bucket, Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	// SDK already resolved region (from explicit config, env, or profile)
	if sdkRegion != "" {
		return sdkRegion
	}

	// Only default for AWS S3 (no custom endpoint)
	if endpoint == "" {
		return DefaultAWSRegion
	}

	// S3-compatible: no default, provider may not need region
	return ""
}

// CreateMultipartUpload starts a multipart upload for key.
func (s *Store) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", s.wrapError("CreateMultipartUpload", key, err)
	}
	return aws.ToString(out.UploadId), nil
}

// UploadPart transmits one part of a multipart upload.
func (s *Store) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.ReadSeeker, size int64) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", s.wrapError("UploadPart", key, err)
	}
	return cleanETag(aws.ToString(out.ETag)), nil
}

// CompleteMultipartUpload finalizes a multipart upload from its parts.
func (s *Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) (*objectstore.Object, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, s.wrapError("CompleteMultipartUpload", key, err)
	}

	obj := &objectstore.Object{
		Ref:  fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Key:  key,
		ETag: cleanETag(aws.ToString(out.ETag)),
	}

	// Size is not returned by CompleteMultipartUpload; read it back.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		obj.SizeBytes = aws.ToInt64(head.ContentLength)
	}

	return obj, nil
}

// AbortMultipartUpload aborts a multipart upload.
func (s *Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return s.wrapError("AbortMultipartUpload", key, err)
	}
	return nil
}

// wrapError converts S3 errors to objectstore errors with appropriate
// sentinel errors.
func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &objectstore.StoreError{
		Op:     op,
		Bucket: s.bucket,
		Key:    key,
		Err:    err,
	}

	var noSuchUpload *types.NoSuchUpload
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchUpload):
		wrapped.Err = objectstore.ErrUploadNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = objectstore.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload":
			wrapped.Err = objectstore.ErrUploadNotFound
		case "NoSuchBucket":
			wrapped.Err = objectstore.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = objectstore.ErrAccessDenied
		case "EntityTooSmall":
			wrapped.Err = objectstore.ErrPartTooSmall
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = objectstore.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = objectstore.ErrStoreUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchUpload"):
		wrapped.Err = objectstore.ErrUploadNotFound
	case strings.Contains(msg, "NoSuchBucket"):
		wrapped.Err = objectstore.ErrBucketNotFound
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "Forbidden") || strings.Contains(msg, "403"):
		wrapped.Err = objectstore.ErrAccessDenied
	case strings.Contains(msg, "SlowDown") || strings.Contains(msg, "Throttling") || strings.Contains(msg, "429"):
		wrapped.Err = objectstore.ErrThrottled
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = objectstore.ErrStoreUnavailable
	}

	return wrapped
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

package s3

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzlabs/wikiexport/pkg/objectstore"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "minimal", cfg: Config{Bucket: "exports"}},
		{name: "missing bucket", cfg: Config{}, wantErr: true},
		{name: "access key without secret", cfg: Config{Bucket: "exports", AccessKeyID: "AKIA"}, wantErr: true},
		{name: "secret without access key", cfg: Config{Bucket: "exports", SecretAccessKey: "shh"}, wantErr: true},
		{name: "both credentials", cfg: Config{Bucket: "exports", AccessKeyID: "AKIA", SecretAccessKey: "shh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				var cfgErr *ConfigError
				require.Error(t, err)
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResolveRegion(t *testing.T) {
	// SDK-resolved region always wins.
	assert.Equal(t, "eu-west-1", resolveRegion("us-east-2", "", "eu-west-1"))

	// AWS S3 without any resolved region falls back to the default.
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", "", ""))

	// S3-compatible stores get no default.
	assert.Equal(t, "", resolveRegion("", "https://minio.local:9000", ""))
}

// mockAPIError implements smithy.APIError for classification tests.
type mockAPIError struct {
	code string
}

func (e *mockAPIError) Error() string                 { return e.code }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.code }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*mockAPIError)(nil)

func TestWrapError(t *testing.T) {
	s := &Store{bucket: "exports"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no such upload code", err: &mockAPIError{code: "NoSuchUpload"}, want: objectstore.ErrUploadNotFound},
		{name: "no such bucket code", err: &mockAPIError{code: "NoSuchBucket"}, want: objectstore.ErrBucketNotFound},
		{name: "access denied", err: &mockAPIError{code: "AccessDenied"}, want: objectstore.ErrAccessDenied},
		{name: "entity too small", err: &mockAPIError{code: "EntityTooSmall"}, want: objectstore.ErrPartTooSmall},
		{name: "slow down", err: &mockAPIError{code: "SlowDown"}, want: objectstore.ErrThrottled},
		{name: "internal error", err: &mockAPIError{code: "InternalError"}, want: objectstore.ErrStoreUnavailable},
		{name: "message fallback throttle", err: errors.New("http status 429 Throttling"), want: objectstore.ErrThrottled},
		{name: "message fallback missing upload", err: errors.New("operation failed: NoSuchUpload"), want: objectstore.ErrUploadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := s.wrapError("UploadPart", "exports/u/j.tar.gz", tt.err)
			assert.ErrorIs(t, wrapped, tt.want)

			var storeErr *objectstore.StoreError
			require.ErrorAs(t, wrapped, &storeErr)
			assert.Equal(t, "UploadPart", storeErr.Op)
			assert.Equal(t, "exports", storeErr.Bucket)
		})
	}

	// Unclassified errors still come back wrapped.
	plain := errors.New("connection reset")
	wrapped := s.wrapError("CreateMultipartUpload", "k", plain)
	assert.ErrorIs(t, wrapped, plain)
	assert.False(t, objectstore.IsUploadNotFound(wrapped))
}

func TestCleanETag(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", cleanETag(`"d41d8cd98f00b204e9800998ecf8427e"`))
	assert.Equal(t, "abc", cleanETag("abc"))
}

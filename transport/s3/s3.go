// Package s3 implements the transport interface for Amazon S3 and
// S3-compatible object stores using the AWS SDK v2. Connection-level retry,
// signing, and TLS are owned by the SDK; the transfer engine above decides
// what to retry and how many calls run concurrently.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/transport"
)

// API defines the subset of S3 operations the transport uses.
// This interface allows for mocking in tests.
type API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

// Verify that the AWS S3 client implements our interface
var _ API = (*awss3.Client)(nil)

// Transport performs transfer-engine calls against one S3 bucket.
type Transport struct {
	client API
	bucket string
}

// Config holds configuration for the S3 transport.
type Config struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
	MaxRetries     int
	HTTPClient     *http.Client
	AWSConfig      *aws.Config
	Client         API // injected client, primarily for tests
}

// Option is a functional option for configuring the S3 transport.
type Option func(*Config)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Config) { c.Region = region }
}

// WithEndpoint sets a custom endpoint URL, for S3-compatible services or
// local testing.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
func WithForcePathStyle(force bool) Option {
	return func(c *Config) { c.ForcePathStyle = force }
}

// WithMaxRetries sets the SDK's connection-level retry budget.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) { c.MaxRetries = maxRetries }
}

// WithHTTPClient provides a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithAWSConfig provides a pre-built AWS configuration, overriding the
// default credential chain.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(c *Config) { c.AWSConfig = cfg }
}

// WithClient injects a custom API implementation. Primarily used for testing.
func WithClient(client API) Option {
	return func(c *Config) { c.Client = client }
}

// New creates an S3 transport for the given bucket. Credentials are loaded
// from the default AWS credential chain unless a config is injected.
func New(ctx context.Context, bucket string, opts ...Option) (*Transport, error) {
	if bucket == "" {
		return nil, xfererrors.NewError("transport", xfererrors.ErrInvalidInput).
			WithMessage("bucket name cannot be empty")
	}

	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Client != nil {
		return &Transport{client: cfg.Client, bucket: bucket}, nil
	}

	var awsCfg aws.Config
	var err error
	if cfg.AWSConfig != nil {
		awsCfg = *cfg.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xfererrors.NewError("transport", err).WithMessage("load AWS config")
		}
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	var s3Opts []func(*awss3.Options)
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) { o.UsePathStyle = true })
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *awss3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.HTTPClient != nil {
		httpClient := cfg.HTTPClient
		s3Opts = append(s3Opts, func(o *awss3.Options) { o.HTTPClient = httpClient })
	}

	return &Transport{
		client: awss3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
	}, nil
}

// PutObject implements transport.Transport.
func (t *Transport) PutObject(ctx context.Context, input transport.UploadInput, reader io.Reader, size int64) (*transport.PutResult, error) {
	params := &awss3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(input.Key),
		Body:          reader,
		ContentLength: aws.Int64(size),
	}
	if input.ContentType != "" {
		params.ContentType = aws.String(input.ContentType)
	}
	if len(input.Metadata) > 0 {
		params.Metadata = input.Metadata
	}

	output, err := t.client.PutObject(ctx, params)
	if err != nil {
		return nil, xfererrors.NewError("putObject", err).WithKey(input.Key)
	}
	etag := aws.ToString(output.ETag)
	return &transport.PutResult{
		ETag:   etag,
		Digest: bodyDigest(etag, output.ServerSideEncryption),
	}, nil
}

// StartSession implements transport.Transport.
func (t *Transport) StartSession(ctx context.Context, input transport.UploadInput) (transport.SessionID, error) {
	params := &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(input.Key),
	}
	if input.ContentType != "" {
		params.ContentType = aws.String(input.ContentType)
	}
	if len(input.Metadata) > 0 {
		params.Metadata = input.Metadata
	}

	output, err := t.client.CreateMultipartUpload(ctx, params)
	if err != nil {
		return "", xfererrors.NewError("startSession", xfererrors.ErrSessionFailed).
			WithKey(input.Key).
			WithMessage(err.Error())
	}
	return transport.SessionID(aws.ToString(output.UploadId)), nil
}

// UploadPart implements transport.Transport.
func (t *Transport) UploadPart(ctx context.Context, session transport.SessionID, key string, partNumber int32, reader io.Reader, size int64) (transport.CompletedPart, error) {
	output, err := t.client.UploadPart(ctx, &awss3.UploadPartInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(string(session)),
		PartNumber:    aws.Int32(partNumber),
		Body:          reader,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return transport.CompletedPart{}, xfererrors.NewPartError("uploadPart", key, partNumber, err)
	}

	etag := aws.ToString(output.ETag)
	return transport.CompletedPart{
		PartNumber: partNumber,
		ETag:       etag,
		Digest:     bodyDigest(etag, output.ServerSideEncryption),
	}, nil
}

// CompleteSession implements transport.Transport.
func (t *Transport) CompleteSession(ctx context.Context, session transport.SessionID, key string, parts []transport.CompletedPart) (*transport.CompleteResult, error) {
	completed := make([]awstypes.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	output, err := t.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(string(session)),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return nil, xfererrors.NewError("completeSession", xfererrors.ErrSessionFailed).
			WithKey(key).
			WithMessage(err.Error())
	}
	return &transport.CompleteResult{ETag: aws.ToString(output.ETag)}, nil
}

// AbortSession implements transport.Transport.
func (t *Transport) AbortSession(ctx context.Context, session transport.SessionID, key string) error {
	_, err := t.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(string(session)),
	})
	if err != nil {
		return xfererrors.NewError("abortSession", xfererrors.ErrSessionFailed).
			WithKey(key).
			WithMessage(err.Error())
	}
	return nil
}

// Stat implements transport.Transport.
func (t *Transport) Stat(ctx context.Context, key string) (*transport.ObjectInfo, error) {
	output, err := t.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, xfererrors.NewError("stat", xfererrors.ErrObjectNotFound).WithKey(key)
		}
		return nil, xfererrors.NewError("stat", err).WithKey(key)
	}

	return &transport.ObjectInfo{
		Key:  key,
		Size: aws.ToInt64(output.ContentLength),
		ETag: aws.ToString(output.ETag),
	}, nil
}

// GetObject implements transport.Transport.
func (t *Transport) GetObject(ctx context.Context, key string) (io.ReadCloser, *transport.ObjectInfo, error) {
	output, err := t.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, xfererrors.NewError("getObject", xfererrors.ErrObjectNotFound).WithKey(key)
		}
		return nil, nil, xfererrors.NewError("getObject", err).WithKey(key)
	}

	etag := aws.ToString(output.ETag)
	info := &transport.ObjectInfo{
		Key:    key,
		Size:   aws.ToInt64(output.ContentLength),
		ETag:   etag,
		Digest: bodyDigest(etag, output.ServerSideEncryption),
	}
	return output.Body, info, nil
}

// GetRange implements transport.Transport. S3 does not return a digest for a
// ranged read, so the digest is always empty.
func (t *Transport) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, string, error) {
	output, err := t.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", xfererrors.NewError("getRange", xfererrors.ErrObjectNotFound).WithKey(key)
		}
		return nil, "", xfererrors.NewError("getRange", err).WithKey(key)
	}
	return output.Body, "", nil
}

// bodyDigest reports the trimmed ETag as a content digest. The ETag equals
// the body MD5 only for unencrypted and SSE-S3 (AES256) responses; under
// SSE-KMS and DSSE-KMS it is an opaque token, so no digest is advertised and
// the engine skips per-part verification.
func bodyDigest(etag string, sse awstypes.ServerSideEncryption) string {
	switch sse {
	case "", awstypes.ServerSideEncryptionAes256:
		return strings.Trim(etag, `"`)
	default:
		return ""
	}
}

// isNotFound checks if an error indicates that an object was not found.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "NotFound")
}

// Verify the transport satisfies the engine's collaborator interface
var _ transport.Transport = (*Transport)(nil)

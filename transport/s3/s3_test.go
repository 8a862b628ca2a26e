package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/transport"
)

// mockAPI implements the API interface with overridable function fields.
type mockAPI struct {
	putObjectFunc               func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	getObjectFunc               func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	headObjectFunc              func(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	createMultipartUploadFunc   func(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	uploadPartFunc              func(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
	completeMultipartUploadFunc func(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	abortMultipartUploadFunc    func(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

func (m *mockAPI) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	return m.putObjectFunc(ctx, params, optFns...)
}

func (m *mockAPI) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	return m.getObjectFunc(ctx, params, optFns...)
}

func (m *mockAPI) HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	return m.headObjectFunc(ctx, params, optFns...)
}

func (m *mockAPI) CreateMultipartUpload(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	return m.createMultipartUploadFunc(ctx, params, optFns...)
}

func (m *mockAPI) UploadPart(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	return m.uploadPartFunc(ctx, params, optFns...)
}

func (m *mockAPI) CompleteMultipartUpload(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	return m.completeMultipartUploadFunc(ctx, params, optFns...)
}

func (m *mockAPI) AbortMultipartUpload(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	return m.abortMultipartUploadFunc(ctx, params, optFns...)
}

func newTestTransport(t *testing.T, api API) *Transport {
	t.Helper()
	tp, err := New(context.Background(), "test-bucket", WithClient(api))
	require.NoError(t, err)
	return tp
}

func TestNew_EmptyBucket(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
	assert.True(t, xfererrors.IsInvalidInput(err))
}

func TestPutObject(t *testing.T) {
	var gotParams *awss3.PutObjectInput
	api := &mockAPI{
		putObjectFunc: func(_ context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			gotParams = params
			return &awss3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
		},
	}
	tp := newTestTransport(t, api)

	input := transport.UploadInput{
		Key:         "docs/readme.md",
		ContentType: "text/markdown",
		Metadata:    map[string]string{"owner": "ops"},
	}
	result, err := tp.PutObject(context.Background(), input, bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)

	assert.Equal(t, `"abc123"`, result.ETag)
	assert.Equal(t, "abc123", result.Digest)
	assert.Equal(t, "test-bucket", aws.ToString(gotParams.Bucket))
	assert.Equal(t, "docs/readme.md", aws.ToString(gotParams.Key))
	assert.Equal(t, "text/markdown", aws.ToString(gotParams.ContentType))
	assert.Equal(t, int64(5), aws.ToInt64(gotParams.ContentLength))
	assert.Equal(t, "ops", gotParams.Metadata["owner"])
}

func TestStartSession_FailureWrapsSessionError(t *testing.T) {
	api := &mockAPI{
		createMultipartUploadFunc: func(_ context.Context, _ *awss3.CreateMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
			return nil, errors.New("AccessDenied")
		},
	}
	tp := newTestTransport(t, api)

	_, err := tp.StartSession(context.Background(), transport.UploadInput{Key: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xfererrors.ErrSessionFailed)
	assert.False(t, xfererrors.IsRetryable(err))
}

func TestUploadPart_DigestFromETag(t *testing.T) {
	api := &mockAPI{
		uploadPartFunc: func(_ context.Context, params *awss3.UploadPartInput, _ ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
			assert.Equal(t, int32(4), aws.ToInt32(params.PartNumber))
			assert.Equal(t, "session-1", aws.ToString(params.UploadId))
			return &awss3.UploadPartOutput{ETag: aws.String(`"d41d8cd98f00b204e9800998ecf8427e"`)}, nil
		},
	}
	tp := newTestTransport(t, api)

	part, err := tp.UploadPart(context.Background(), "session-1", "k", 4, strings.NewReader(""), 0)
	require.NoError(t, err)

	assert.Equal(t, int32(4), part.PartNumber)
	assert.Equal(t, `"d41d8cd98f00b204e9800998ecf8427e"`, part.ETag)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", part.Digest, "digest must be the unquoted ETag")
}

func TestUploadPart_EncryptedResponseSuppressesDigest(t *testing.T) {
	// Under SSE-KMS the ETag is an opaque token, not the body MD5. Advertising
	// it as a digest would fail every intact part.
	tests := []struct {
		name       string
		sse        awstypes.ServerSideEncryption
		wantDigest string
	}{
		{name: "unencrypted", sse: "", wantDigest: "0f343b0931126a20f133d67c2b018a3b"},
		{name: "sse-s3", sse: awstypes.ServerSideEncryptionAes256, wantDigest: "0f343b0931126a20f133d67c2b018a3b"},
		{name: "sse-kms", sse: awstypes.ServerSideEncryptionAwsKms, wantDigest: ""},
		{name: "dsse-kms", sse: awstypes.ServerSideEncryptionAwsKmsDsse, wantDigest: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{
				uploadPartFunc: func(_ context.Context, _ *awss3.UploadPartInput, _ ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
					return &awss3.UploadPartOutput{
						ETag:                 aws.String(`"0f343b0931126a20f133d67c2b018a3b"`),
						ServerSideEncryption: tt.sse,
					}, nil
				},
			}
			tp := newTestTransport(t, api)

			part, err := tp.UploadPart(context.Background(), "session-1", "k", 1, strings.NewReader("x"), 1)
			require.NoError(t, err)
			assert.Equal(t, `"0f343b0931126a20f133d67c2b018a3b"`, part.ETag)
			assert.Equal(t, tt.wantDigest, part.Digest)
		})
	}
}

func TestPutObject_EncryptedResponseSuppressesDigest(t *testing.T) {
	api := &mockAPI{
		putObjectFunc: func(_ context.Context, _ *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			return &awss3.PutObjectOutput{
				ETag:                 aws.String(`"0f343b0931126a20f133d67c2b018a3b"`),
				ServerSideEncryption: awstypes.ServerSideEncryptionAwsKms,
			}, nil
		},
	}
	tp := newTestTransport(t, api)

	result, err := tp.PutObject(context.Background(), transport.UploadInput{Key: "k"}, strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, `"0f343b0931126a20f133d67c2b018a3b"`, result.ETag)
	assert.Empty(t, result.Digest)
}

func TestCompleteSession_PassesPartsInOrder(t *testing.T) {
	var gotParams *awss3.CompleteMultipartUploadInput
	api := &mockAPI{
		completeMultipartUploadFunc: func(_ context.Context, params *awss3.CompleteMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
			gotParams = params
			return &awss3.CompleteMultipartUploadOutput{ETag: aws.String(`"final-3"`)}, nil
		},
	}
	tp := newTestTransport(t, api)

	parts := []transport.CompletedPart{
		{PartNumber: 1, ETag: `"e1"`},
		{PartNumber: 2, ETag: `"e2"`},
		{PartNumber: 3, ETag: `"e3"`},
	}
	result, err := tp.CompleteSession(context.Background(), "session-1", "k", parts)
	require.NoError(t, err)

	assert.Equal(t, `"final-3"`, result.ETag)
	require.Len(t, gotParams.MultipartUpload.Parts, 3)
	for i, p := range gotParams.MultipartUpload.Parts {
		assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
	}
}

func TestAbortSession(t *testing.T) {
	var aborted bool
	api := &mockAPI{
		abortMultipartUploadFunc: func(_ context.Context, params *awss3.AbortMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
			aborted = true
			assert.Equal(t, "session-1", aws.ToString(params.UploadId))
			return &awss3.AbortMultipartUploadOutput{}, nil
		},
	}
	tp := newTestTransport(t, api)

	require.NoError(t, tp.AbortSession(context.Background(), "session-1", "k"))
	assert.True(t, aborted)
}

func TestStat_NotFound(t *testing.T) {
	api := &mockAPI{
		headObjectFunc: func(_ context.Context, _ *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
			return nil, errors.New("NotFound: Not Found")
		},
	}
	tp := newTestTransport(t, api)

	_, err := tp.Stat(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, xfererrors.IsObjectNotFound(err))
}

func TestStat(t *testing.T) {
	api := &mockAPI{
		headObjectFunc: func(_ context.Context, _ *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
			return &awss3.HeadObjectOutput{
				ContentLength: aws.Int64(42),
				ETag:          aws.String(`"e"`),
			}, nil
		},
	}
	tp := newTestTransport(t, api)

	info, err := tp.Stat(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, `"e"`, info.ETag)
	assert.Equal(t, "k", info.Key)
}

func TestGetRange_HeaderFormat(t *testing.T) {
	api := &mockAPI{
		getObjectFunc: func(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			assert.Equal(t, "bytes=1024-2047", aws.ToString(params.Range))
			return &awss3.GetObjectOutput{
				Body: io.NopCloser(bytes.NewReader(make([]byte, 1024))),
			}, nil
		},
	}
	tp := newTestTransport(t, api)

	body, digest, err := tp.GetRange(context.Background(), "k", 1024, 1024)
	require.NoError(t, err)
	defer body.Close()

	assert.Empty(t, digest)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestGetObject(t *testing.T) {
	api := &mockAPI{
		getObjectFunc: func(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			assert.Nil(t, params.Range)
			return &awss3.GetObjectOutput{
				Body:          io.NopCloser(strings.NewReader("body")),
				ContentLength: aws.Int64(4),
				ETag:          aws.String(`"e"`),
			}, nil
		},
	}
	tp := newTestTransport(t, api)

	body, info, err := tp.GetObject(context.Background(), "k")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, "e", info.Digest)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestGetObject_EncryptedResponseSuppressesDigest(t *testing.T) {
	api := &mockAPI{
		getObjectFunc: func(_ context.Context, _ *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return &awss3.GetObjectOutput{
				Body:                 io.NopCloser(strings.NewReader("body")),
				ContentLength:        aws.Int64(4),
				ETag:                 aws.String(`"0f343b0931126a20f133d67c2b018a3b"`),
				ServerSideEncryption: awstypes.ServerSideEncryptionAwsKms,
			}, nil
		},
	}
	tp := newTestTransport(t, api)

	body, info, err := tp.GetObject(context.Background(), "k")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, `"0f343b0931126a20f133d67c2b018a3b"`, info.ETag)
	assert.Empty(t, info.Digest)
}

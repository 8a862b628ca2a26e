package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/testutil"
	"github.com/blobworks/transfer/transfertypes"
)

func TestNew_NilTransport(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, xfererrors.IsInvalidInput(err))
}

func TestNew_Defaults(t *testing.T) {
	client, err := New(testutil.NewFakeTransport())
	require.NoError(t, err)

	assert.Equal(t, transfertypes.DefaultConcurrency, client.concurrency)
	assert.Equal(t, transfertypes.DefaultMaxAttempts, client.maxAttempts)
	assert.Equal(t, transfertypes.DefaultMinPartSize, client.limits.MinPartSize)
	assert.NotNil(t, client.log)
	assert.NotNil(t, client.fs)
}

func TestNew_Options(t *testing.T) {
	client, err := New(testutil.NewFakeTransport(),
		WithConcurrency(8),
		WithPartSize(32*1024*1024),
		WithMaxAttempts(5),
	)
	require.NoError(t, err)

	assert.Equal(t, 8, client.concurrency)
	assert.Equal(t, int64(32*1024*1024), client.partSize)
	assert.Equal(t, 5, client.maxAttempts)
}

func TestNew_RejectsInconsistentLimits(t *testing.T) {
	_, err := New(testutil.NewFakeTransport(), WithLimits(transfertypes.Limits{
		MinPartSize: 2048,
		MaxPartSize: 1024,
	}))
	require.Error(t, err)
	assert.True(t, xfererrors.IsInvalidInput(err))
}

func TestNew_RejectsOversizedPartSize(t *testing.T) {
	_, err := New(testutil.NewFakeTransport(),
		WithLimits(transfertypes.Limits{MaxPartSize: 1024}),
		WithPartSize(2048),
	)
	require.Error(t, err)
	assert.True(t, xfererrors.IsInvalidInput(err))
}

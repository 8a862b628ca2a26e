// Package transfertypes provides shared type definitions for the transfer module.
package transfertypes

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/sirupsen/logrus"
)

// Default protocol limits. These match the multipart constraints of S3 and
// most S3-compatible stores.
const (
	// DefaultMinPartSize is the smallest part size the planner will emit
	// for any part other than the last (8MiB).
	DefaultMinPartSize int64 = 8 * 1024 * 1024

	// DefaultMaxPartSize is the largest single part the protocol accepts (5GiB).
	DefaultMaxPartSize int64 = 5 * 1024 * 1024 * 1024

	// DefaultMaxParts is the protocol ceiling on the number of parts per session.
	DefaultMaxParts int32 = 10000

	// DefaultMultipartThreshold is the object size above which a multipart
	// session is used instead of a single-call operation.
	DefaultMultipartThreshold int64 = 16 * 1024 * 1024

	// DefaultConcurrency is the default number of part jobs in flight.
	DefaultConcurrency = 5

	// DefaultMaxAttempts is the default number of attempts per part,
	// including the first.
	DefaultMaxAttempts = 3
)

// Limits describes the hard protocol constraints the partition planner must
// honor. A zero value for any field falls back to the package default.
type Limits struct {
	// MinPartSize is the minimum size of every part except the last
	MinPartSize int64

	// MaxPartSize is the maximum size of any part
	MaxPartSize int64

	// MaxParts is the maximum number of parts in one session
	MaxParts int32

	// MultipartThreshold is the size at or below which a transfer is
	// performed as a single non-multipart operation
	MultipartThreshold int64
}

// WithDefaults returns a copy of the limits with zero fields replaced by
// package defaults.
func (l Limits) WithDefaults() Limits {
	if l.MinPartSize <= 0 {
		l.MinPartSize = DefaultMinPartSize
	}
	if l.MaxPartSize <= 0 {
		l.MaxPartSize = DefaultMaxPartSize
	}
	if l.MaxParts <= 0 {
		l.MaxParts = DefaultMaxParts
	}
	if l.MultipartThreshold <= 0 {
		l.MultipartThreshold = DefaultMultipartThreshold
	}
	return l
}

// ProgressSink receives part-completion notifications during a transfer.
// Implementations must not block: the scheduler invokes the sink synchronously
// from its completion path.
type ProgressSink interface {
	// OnPartComplete is called once per successfully transferred part
	OnPartComplete(partNumber int32, bytes int64)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(partNumber int32, bytes int64)

// OnPartComplete implements ProgressSink.
func (f ProgressSinkFunc) OnPartComplete(partNumber int32, bytes int64) {
	f(partNumber, bytes)
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the remote object key that was uploaded
	Key string

	// Size is the number of bytes transferred
	Size int64

	// ETag is the entity tag of the final object
	ETag string

	// PartCount is the number of parts transferred (1 for simple uploads)
	PartCount int32

	// Checksum is the hex-encoded source fingerprint validated at completion
	Checksum string

	// Duration is how long the upload took
	Duration time.Duration
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// Key is the remote object key that was downloaded
	Key string

	// Size is the number of bytes transferred
	Size int64

	// ETag is the entity tag of the remote object
	ETag string

	// PartCount is the number of ranges transferred (1 for simple downloads)
	PartCount int32

	// Duration is how long the download took
	Duration time.Duration
}

// Configuration types for functional options

// ClientConfig holds configuration for the transfer client.
type ClientConfig struct {
	Concurrency  int
	PartSize     int64
	MaxAttempts  int
	RetryBackoff time.Duration // initial delay before the first part retry
	Limits       Limits
	Timeout      time.Duration
	Logger       *logrus.Logger
	Filesystem   fs.Filesystem // Filesystem abstraction for file operations
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType  string
	Metadata     map[string]string
	PartSize     int64
	Concurrency  int
	Length       int64 // explicit source length; skips the stat probe when > 0
	Offset       int64 // starting offset within the source file
	ProgressSink ProgressSink
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	PartSize     int64
	Concurrency  int
	ProgressSink ProgressSink
}

// Option is a functional option for configuring the transfer client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring download operations.
	DownloadOption func(*DownloadOptionConfig)
)

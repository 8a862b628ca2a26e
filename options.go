// Package transfer provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package transfer

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/sirupsen/logrus"

	"github.com/blobworks/transfer/transfertypes"
)

// WithConcurrency sets the maximum number of part jobs in flight per transfer.
// Default is 5.
func WithConcurrency(concurrency int) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the preferred part size for multipart transfers.
// The planner may grow it to stay under the protocol's part-count ceiling.
func WithPartSize(partSize int64) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithMaxAttempts sets the number of attempts per part, including the first.
// Default is 3.
func WithMaxAttempts(maxAttempts int) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
	}
}

// WithRetryBackoff sets the initial delay before the first retry of a failed
// part. Subsequent retries back off exponentially from it.
func WithRetryBackoff(backoff time.Duration) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		if backoff > 0 {
			c.RetryBackoff = backoff
		}
	}
}

// WithLimits overrides the protocol part limits. Useful for stores with
// constraints different from S3's.
func WithLimits(limits transfertypes.Limits) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		c.Limits = limits
	}
}

// WithTransferTimeout sets a per-transfer deadline. Once elapsed it is
// treated identically to caller cancellation: in-flight parts stop at their
// next suspension point and the session is aborted.
func WithTransferTimeout(timeout time.Duration) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithLogger sets the logger for transfer and part lifecycle events.
// If not specified, logging is discarded.
func WithLogger(logger *logrus.Logger) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) transfertypes.Option {
	return func(c *transfertypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the content type for upload operations.
func WithContentType(contentType string) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithUploadPartSize sets the part size for this upload, overriding the
// client-level default.
func WithUploadPartSize(partSize int64) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithUploadConcurrency sets the concurrency level for this upload,
// overriding the client-level default.
func WithUploadConcurrency(concurrency int) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithSourceLength supplies the source length explicitly, skipping the
// file metadata probe at open time.
func WithSourceLength(length int64) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		if length > 0 {
			c.Length = length
		}
	}
}

// WithSourceOffset starts the upload at the given byte offset within the
// source file.
func WithSourceOffset(offset int64) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		if offset > 0 {
			c.Offset = offset
		}
	}
}

// WithUploadProgress sets a progress sink for this upload. The sink must not
// block; it is invoked synchronously from the scheduler's completion path.
func WithUploadProgress(sink transfertypes.ProgressSink) transfertypes.UploadOption {
	return func(c *transfertypes.UploadOptionConfig) {
		c.ProgressSink = sink
	}
}

// WithDownloadPartSize sets the range size for this download, overriding the
// client-level default.
func WithDownloadPartSize(partSize int64) transfertypes.DownloadOption {
	return func(c *transfertypes.DownloadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithDownloadConcurrency sets the concurrency level for this download,
// overriding the client-level default.
func WithDownloadConcurrency(concurrency int) transfertypes.DownloadOption {
	return func(c *transfertypes.DownloadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDownloadProgress sets a progress sink for this download. The sink must
// not block.
func WithDownloadProgress(sink transfertypes.ProgressSink) transfertypes.DownloadOption {
	return func(c *transfertypes.DownloadOptionConfig) {
		c.ProgressSink = sink
	}
}

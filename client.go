package transfer

import (
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/sirupsen/logrus"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/validation"
	"github.com/blobworks/transfer/transfertypes"
	"github.com/blobworks/transfer/transport"
)

// Client coordinates transfers against one transport. It is safe for
// concurrent use; each transfer owns its source exclusively for the duration
// of the call.
type Client struct {
	// transport performs the remote calls the engine schedules
	transport transport.Transport

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem

	// log receives transfer and part lifecycle events
	log *logrus.Logger

	concurrency  int
	partSize     int64
	maxAttempts  int
	retryBackoff time.Duration
	limits       transfertypes.Limits
	timeout      time.Duration
}

// New creates a transfer client over the given transport.
//
// Example:
//
//	client, err := transfer.New(tp,
//	    transfer.WithConcurrency(8),
//	    transfer.WithPartSize(16*1024*1024),
//	)
func New(tp transport.Transport, opts ...transfertypes.Option) (*Client, error) {
	if tp == nil {
		return nil, xfererrors.NewError("client initialization", xfererrors.ErrInvalidInput).
			WithMessage("transport cannot be nil")
	}

	cfg := &transfertypes.ClientConfig{
		Concurrency: transfertypes.DefaultConcurrency,
		MaxAttempts: transfertypes.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Limits = cfg.Limits.WithDefaults()

	if err := validation.ValidateLimits(cfg.Limits); err != nil {
		return nil, err
	}
	if err := validation.ValidatePartSize(cfg.PartSize, cfg.Limits); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	return &Client{
		transport:    tp,
		fs:           filesystem,
		log:          logger,
		concurrency:  cfg.Concurrency,
		partSize:     cfg.PartSize,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		limits:       cfg.Limits,
		timeout:      cfg.Timeout,
	}, nil
}

// SetFilesystem sets the filesystem implementation for the client.
// This is useful for testing or when the filesystem needs to be changed after creation.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.fs = filesystem
}

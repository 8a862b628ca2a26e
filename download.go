package transfer

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/checksum"
	"github.com/blobworks/transfer/internal/planner"
	"github.com/blobworks/transfer/internal/pool"
	"github.com/blobworks/transfer/internal/scheduler"
	"github.com/blobworks/transfer/internal/validation"
	"github.com/blobworks/transfer/transfertypes"
)

// Download downloads the remote object at key into w.
//
// Small objects are fetched with a single call; larger ones as concurrent
// ranged reads. Ranges may complete in any order but are written to w
// strictly in offset order, so w only ever sees a contiguous prefix of the
// object.
func (c *Client) Download(
	ctx context.Context,
	key string,
	w io.Writer,
	opts ...transfertypes.DownloadOption,
) (*transfertypes.DownloadResult, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, xfererrors.NewError("download", xfererrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("writer cannot be nil")
	}

	config := &transfertypes.DownloadOptionConfig{
		PartSize:    c.partSize,
		Concurrency: c.concurrency,
	}
	for _, opt := range opts {
		opt(config)
	}

	return c.downloadObject(ctx, key, w, config)
}

// DownloadFile downloads the remote object at key to a file on the client's
// filesystem, creating or truncating it.
func (c *Client) DownloadFile(
	ctx context.Context,
	key, path string,
	opts ...transfertypes.DownloadOption,
) (*transfertypes.DownloadResult, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, xfererrors.NewError("downloadFile", xfererrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("path cannot be empty")
	}

	file, err := c.fs.Create(path)
	if err != nil {
		return nil, xfererrors.NewError("downloadFile", err).
			WithKey(key).
			WithMessage("failed to create destination file")
	}

	result, err := c.Download(ctx, key, file, opts...)
	if cerr := file.Close(); cerr != nil && err == nil {
		err = xfererrors.NewError("downloadFile", cerr).
			WithKey(key).
			WithMessage("failed to close destination file")
	}
	if err != nil {
		// Do not leave a truncated destination behind.
		if rmErr := c.fs.Remove(path); rmErr != nil {
			c.log.WithFields(logrus.Fields{
				"path":  path,
				"error": rmErr,
			}).Warn("failed to remove partial download")
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) downloadObject(
	ctx context.Context,
	key string,
	w io.Writer,
	config *transfertypes.DownloadOptionConfig,
) (*transfertypes.DownloadResult, error) {
	startTime := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	info, err := c.transport.Stat(ctx, key)
	if err != nil {
		return nil, c.annotate(err, "download", key)
	}

	log := c.log.WithFields(logrus.Fields{
		"transfer_id": uuid.NewString(),
		"key":         key,
		"size":        info.Size,
	})

	plan, err := planner.Compute(info.Size, c.limits, config.PartSize)
	if err != nil {
		return nil, c.annotate(err, "download", key)
	}

	var written int64
	if plan.Simple {
		log.WithField("mode", "simple").Debug("starting download")
		written, err = c.downloadSimple(ctx, key, w, plan, config, log)
	} else {
		log.WithFields(logrus.Fields{
			"mode":      "multipart",
			"parts":     len(plan.Parts),
			"part_size": plan.PartSize,
		}).Debug("starting download")
		written, err = c.downloadRanged(ctx, key, w, plan, config, log)
	}
	if err != nil {
		return nil, err
	}

	result := &transfertypes.DownloadResult{
		Key:       key,
		Size:      written,
		ETag:      info.ETag,
		PartCount: int32(len(plan.Parts)),
		Duration:  time.Since(startTime),
	}
	log.WithField("duration", result.Duration).Debug("download complete")
	return result, nil
}

// downloadSimple fetches the whole object in one call. The fetch runs through
// the scheduler as a single part so it gets the same retry treatment as
// ranged downloads. The body is staged in a buffer before touching w, so a
// failed attempt never leaves a partial write behind: w may not be
// rewindable.
func (c *Client) downloadSimple(
	ctx context.Context,
	key string,
	w io.Writer,
	plan *planner.Plan,
	config *transfertypes.DownloadOptionConfig,
	log *logrus.Entry,
) (int64, error) {
	sched := scheduler.New(scheduler.Config{
		Concurrency:    1,
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: c.retryBackoff,
		Logger:         log,
		Sink:           config.ProgressSink,
	})

	var staged bytes.Buffer
	exec := func(ctx context.Context, _ planner.PartSpec, _ int) (scheduler.PartResult, error) {
		body, info, err := c.transport.GetObject(ctx, key)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		defer body.Close()

		staged.Reset()
		dr := checksum.NewDigestReader(body)
		n, err := io.Copy(&staged, dr)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		if err := checksum.VerifyPart(dr.Sum(), info.Digest); err != nil {
			return scheduler.PartResult{}, err
		}
		return scheduler.PartResult{Bytes: n}, nil
	}

	if _, err := sched.Run(ctx, plan.Parts, exec); err != nil {
		return 0, c.annotate(err, "download", key)
	}

	n, err := io.Copy(w, &staged)
	if err != nil {
		return n, xfererrors.NewError("download", err).
			WithKey(key).
			WithMessage("failed to write object body")
	}
	return n, nil
}

// downloadRanged fetches the object as concurrent ranged reads. Each range is
// staged in a pooled buffer and digest-checked before it is handed to the
// sequencer, which releases ranges to w in part-number order.
func (c *Client) downloadRanged(
	ctx context.Context,
	key string,
	w io.Writer,
	plan *planner.Plan,
	config *transfertypes.DownloadOptionConfig,
	log *logrus.Entry,
) (int64, error) {
	seq := scheduler.NewWriteSequencer(w)
	buffers := pool.NewBufferPool(plan.PartSize)

	sched := scheduler.New(scheduler.Config{
		Concurrency:    config.Concurrency,
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: c.retryBackoff,
		Logger:         log,
		Sink:           config.ProgressSink,
	})

	exec := func(ctx context.Context, spec planner.PartSpec, _ int) (scheduler.PartResult, error) {
		body, digest, err := c.transport.GetRange(ctx, key, spec.Offset, spec.Length)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		defer body.Close()

		buf := buffers.Get()
		defer buffers.Put(buf)

		dr := checksum.NewDigestReader(body)
		n, err := io.Copy(buf, dr)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		// A short range body is a transient transport fault, not data
		// corruption. Surface it as retryable.
		if n != spec.Length {
			return scheduler.PartResult{}, xfererrors.NewPartError("download", key, spec.PartNumber,
				io.ErrUnexpectedEOF).
				WithMessage("range body truncated")
		}
		if err := checksum.VerifyPart(dr.Sum(), digest); err != nil {
			return scheduler.PartResult{}, err
		}

		if _, err := seq.Deliver(ctx, spec.PartNumber, buf); err != nil {
			return scheduler.PartResult{}, err
		}
		return scheduler.PartResult{Bytes: n}, nil
	}

	if _, err := sched.Run(ctx, plan.Parts, exec); err != nil {
		seq.Fail(err)
		return 0, c.annotate(err, "download", key)
	}

	return seq.Written(), nil
}

package transfer

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/checksum"
	"github.com/blobworks/transfer/internal/planner"
	"github.com/blobworks/transfer/internal/scheduler"
	"github.com/blobworks/transfer/internal/source"
	"github.com/blobworks/transfer/internal/validation"
	"github.com/blobworks/transfer/transfertypes"
	"github.com/blobworks/transfer/transport"
)

const (
	// DefaultContentType is the content type used when detection fails
	DefaultContentType = "application/octet-stream"
)

// Upload uploads data from an io.Reader to the remote store under key.
// The reader is drained into memory first so the engine has a fixed-size,
// fingerprinted source; use UploadFile for large data already on disk.
//
// Small objects are transferred with a single call; larger ones through a
// multipart session whose parts run concurrently and retry independently.
// The session is always completed or aborted, on every exit path.
func (c *Client) Upload(
	ctx context.Context,
	key string,
	reader io.Reader,
	opts ...transfertypes.UploadOption,
) (*transfertypes.UploadResult, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, xfererrors.NewError("upload", xfererrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("reader cannot be nil")
	}

	config := c.applyUploadOptions(opts)

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, xfererrors.NewError("upload", xfererrors.ErrSourceUnreadable).
			WithKey(key).
			WithMessage(err.Error())
	}

	if config.ContentType == "" {
		config.ContentType = detectContentTypeFromBytes(data, key)
	}

	return c.uploadSource(ctx, "upload", key, source.FromBytes(data), config)
}

// UploadFile uploads a file (or a region of one, via WithSourceOffset and
// WithSourceLength) from the client's filesystem to the remote store.
//
// The file's length and fingerprint are cached when the source is opened.
// The contents MUST not change for the duration of the transfer: drift is
// detected and fails the transfer rather than completing with corrupted data.
func (c *Client) UploadFile(
	ctx context.Context,
	key, path string,
	opts ...transfertypes.UploadOption,
) (*transfertypes.UploadResult, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, xfererrors.NewError("uploadFile", xfererrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("path cannot be empty")
	}

	config := c.applyUploadOptions(opts)

	src, err := source.FromFile(c.fs, path, config.Offset, config.Length)
	if err != nil {
		return nil, err
	}

	if config.ContentType == "" {
		config.ContentType = c.detectContentType(path)
	}

	return c.uploadSource(ctx, "uploadFile", key, src, config)
}

func (c *Client) applyUploadOptions(opts []transfertypes.UploadOption) *transfertypes.UploadOptionConfig {
	config := &transfertypes.UploadOptionConfig{
		PartSize:    c.partSize,
		Concurrency: c.concurrency,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// uploadSource drives the planner, scheduler, and checksum manager for one
// opened source.
func (c *Client) uploadSource(
	ctx context.Context,
	op, key string,
	src *source.Source,
	config *transfertypes.UploadOptionConfig,
) (*transfertypes.UploadResult, error) {
	startTime := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := c.log.WithFields(logrus.Fields{
		"transfer_id": uuid.NewString(),
		"key":         key,
		"size":        src.Size(),
	})

	mgr := checksum.NewManager(src)

	plan, err := planner.Compute(src.Size(), c.limits, config.PartSize)
	if err != nil {
		if xe, ok := err.(*xfererrors.Error); ok { //nolint:errorlint // annotate in place
			return nil, xe.WithKey(key)
		}
		return nil, xfererrors.NewError(op, err).WithKey(key)
	}

	input := transport.UploadInput{
		Key:         key,
		ContentType: config.ContentType,
		Metadata:    config.Metadata,
	}

	var result *transfertypes.UploadResult
	if plan.Simple {
		log.WithField("mode", "simple").Debug("starting upload")
		result, err = c.uploadSimple(ctx, key, src, mgr, plan, input, config, log)
	} else {
		log.WithFields(logrus.Fields{
			"mode":      "multipart",
			"parts":     len(plan.Parts),
			"part_size": plan.PartSize,
		}).Debug("starting upload")
		result, err = c.uploadMultipart(ctx, key, src, mgr, plan, input, config, log)
	}
	if err != nil {
		return nil, err
	}

	result.Key = key
	result.Checksum = mgr.Fingerprint()
	result.Duration = time.Since(startTime)
	log.WithField("duration", result.Duration).Debug("upload complete")
	return result, nil
}

// uploadSimple performs a single-call upload. The one part still runs through
// the scheduler so transient failures get the same retry treatment as
// multipart parts.
func (c *Client) uploadSimple(
	ctx context.Context,
	key string,
	src *source.Source,
	mgr *checksum.Manager,
	plan *planner.Plan,
	input transport.UploadInput,
	config *transfertypes.UploadOptionConfig,
	log *logrus.Entry,
) (*transfertypes.UploadResult, error) {
	sched := scheduler.New(scheduler.Config{
		Concurrency:    1,
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: c.retryBackoff,
		Logger:         log,
		Sink:           config.ProgressSink,
	})

	exec := func(ctx context.Context, spec planner.PartSpec, _ int) (scheduler.PartResult, error) {
		if err := mgr.ValidateQuick(); err != nil {
			return scheduler.PartResult{}, err
		}
		r, err := src.RangeReader(spec.Offset, spec.Length)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		defer r.Close()

		dr := checksum.NewDigestReader(r)
		put, err := c.transport.PutObject(ctx, input, dr, spec.Length)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		if err := checksum.VerifyPart(dr.Sum(), put.Digest); err != nil {
			return scheduler.PartResult{}, err
		}
		return scheduler.PartResult{
			Identifier: transport.CompletedPart{PartNumber: spec.PartNumber, ETag: put.ETag},
			Bytes:      dr.BytesRead(),
		}, nil
	}

	results, err := sched.Run(ctx, plan.Parts, exec)
	if err != nil {
		return nil, c.annotate(err, "upload", key)
	}
	if err := mgr.ValidateFull(); err != nil {
		return nil, c.annotate(err, "upload", key)
	}

	return &transfertypes.UploadResult{
		Size:      results[0].Bytes,
		ETag:      results[0].Identifier.ETag,
		PartCount: 1,
	}, nil
}

// uploadMultipart opens a session, runs the part plan, and completes the
// session with the ordered part identifiers. Any failure after the session is
// opened aborts it before the error is surfaced.
func (c *Client) uploadMultipart(
	ctx context.Context,
	key string,
	src *source.Source,
	mgr *checksum.Manager,
	plan *planner.Plan,
	input transport.UploadInput,
	config *transfertypes.UploadOptionConfig,
	log *logrus.Entry,
) (*transfertypes.UploadResult, error) {
	session, err := c.transport.StartSession(ctx, input)
	if err != nil {
		return nil, c.annotate(err, "upload", key)
	}

	sched := scheduler.New(scheduler.Config{
		Concurrency:    config.Concurrency,
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: c.retryBackoff,
		Logger:         log,
		Sink:           config.ProgressSink,
	})

	exec := func(ctx context.Context, spec planner.PartSpec, _ int) (scheduler.PartResult, error) {
		if err := mgr.ValidateQuick(); err != nil {
			return scheduler.PartResult{}, err
		}
		r, err := src.RangeReader(spec.Offset, spec.Length)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		defer r.Close()

		dr := checksum.NewDigestReader(r)
		part, err := c.transport.UploadPart(ctx, session, key, spec.PartNumber, dr, spec.Length)
		if err != nil {
			return scheduler.PartResult{}, err
		}
		if err := checksum.VerifyPart(dr.Sum(), part.Digest); err != nil {
			return scheduler.PartResult{}, err
		}
		return scheduler.PartResult{Identifier: part, Bytes: dr.BytesRead()}, nil
	}

	results, err := sched.Run(ctx, plan.Parts, exec)
	if err != nil {
		c.abortSession(ctx, session, key, log)
		return nil, c.annotate(err, "upload", key)
	}

	// The source must still match the plan-time snapshot before the object
	// is assembled remotely.
	if err := mgr.ValidateFull(); err != nil {
		c.abortSession(ctx, session, key, log)
		return nil, c.annotate(err, "upload", key)
	}

	parts := make([]transport.CompletedPart, len(results))
	var total int64
	for i, res := range results {
		parts[i] = res.Identifier
		total += res.Bytes
	}

	completed, err := c.transport.CompleteSession(ctx, session, key, parts)
	if err != nil {
		c.abortSession(ctx, session, key, log)
		return nil, c.annotate(err, "upload", key)
	}

	return &transfertypes.UploadResult{
		Size:      total,
		ETag:      completed.ETag,
		PartCount: int32(len(parts)),
	}, nil
}

// abortSession releases a session that will not be completed. Abort runs on
// a fresh context so a cancelled transfer still cleans up remotely.
func (c *Client) abortSession(ctx context.Context, session transport.SessionID, key string, log *logrus.Entry) {
	abortCtx := context.WithoutCancel(ctx)
	if err := c.transport.AbortSession(abortCtx, session, key); err != nil {
		log.WithField("error", err).Warn("failed to abort multipart session")
	}
}

// annotate attaches operation and key context to errors that escaped the
// engine without it.
func (c *Client) annotate(err error, op, key string) error {
	if xe, ok := err.(*xfererrors.Error); ok { //nolint:errorlint // annotate in place
		if xe.Key == "" {
			xe.Key = key
		}
		return xe
	}
	return xfererrors.NewError(op, err).WithKey(key)
}

// detectContentType detects the content type of a local file, preferring
// content sniffing over extension lookup.
func (c *Client) detectContentType(path string) string {
	file, err := c.fs.Open(path)
	if err != nil {
		return detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return detectContentTypeFromExtension(path)
}

func detectContentTypeFromBytes(data []byte, key string) string {
	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt != nil {
			return mt.String()
		}
	}
	return detectContentTypeFromExtension(key)
}

func detectContentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}

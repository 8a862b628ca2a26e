package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/planner"
	"github.com/blobworks/transfer/transfertypes"
	"github.com/blobworks/transfer/transport"
)

// PartResult is the outcome of one successfully transferred part.
type PartResult struct {
	// PartNumber is the 1-based part number
	PartNumber int32

	// Identifier is the transport-assigned part identifier (uploads only)
	Identifier transport.CompletedPart

	// Bytes is the number of bytes transferred for this part
	Bytes int64
}

// Executor runs a single part attempt. It is recreated work: each invocation
// must obtain a fresh range reader, so a retry never observes a half-consumed
// view. attempt is 1-based.
type Executor func(ctx context.Context, spec planner.PartSpec, attempt int) (PartResult, error)

// Config configures a Scheduler.
type Config struct {
	// Concurrency is the maximum number of part jobs in flight
	Concurrency int

	// MaxAttempts is the number of attempts per part, including the first
	MaxAttempts int

	// InitialBackoff is the first retry delay. Zero selects the
	// backoff package default (500ms).
	InitialBackoff time.Duration

	// Logger receives part-level retry and failure events
	Logger *logrus.Entry

	// Sink receives part-completion notifications; may be nil
	Sink transfertypes.ProgressSink
}

// Scheduler executes a part plan with bounded concurrency and per-part retry.
type Scheduler struct {
	concurrency    int
	maxAttempts    int
	initialBackoff time.Duration
	log            *logrus.Entry
	sink           transfertypes.ProgressSink
}

// New creates a Scheduler. Zero config fields fall back to package defaults.
func New(cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = transfertypes.DefaultConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = transfertypes.DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(nopWriter{})
		cfg.Logger = logrus.NewEntry(logger)
	}
	return &Scheduler{
		concurrency:    cfg.Concurrency,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		log:            cfg.Logger,
		sink:           cfg.Sink,
	}
}

// Run executes every part in the plan. On the first terminal part failure the
// group context is cancelled, in-flight parts stop at their next suspension
// point, and the triggering error is returned with part context attached.
// On success the results are returned sorted ascending by part number.
func (s *Scheduler) Run(ctx context.Context, parts []planner.PartSpec, exec Executor) ([]PartResult, error) {
	st := newState(parts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, spec := range parts {
		spec := spec
		g.Go(func() error {
			// Submission slots already acquired; bail out before starting an
			// attempt if the transfer is already aborting.
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error is the abort signal
			}

			st.transition(spec.PartNumber, PartInFlight)
			res, err := s.runPart(gctx, st, spec, exec)
			if err != nil {
				st.fail(spec.PartNumber)
				s.log.WithFields(logrus.Fields{
					"part":      spec.PartNumber,
					"in_flight": st.inFlight(),
					"error":     err,
				}).Warn("part failed, aborting transfer")
				if xe, ok := err.(*xfererrors.Error); ok { //nolint:errorlint // annotate in place
					return xe.WithPart(spec.PartNumber)
				}
				return xfererrors.NewPartError("schedule", "", spec.PartNumber, err)
			}

			res.PartNumber = spec.PartNumber
			st.complete(spec.PartNumber, res)
			if s.sink != nil {
				// The sink contract is fire-and-forget; it must not block.
				s.sink.OnPartComplete(spec.PartNumber, res.Bytes)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // part context attached where the failure occurred
	}
	return st.ordered(), nil
}

// runPart drives the attempt/retry loop for one part. Retryable failures are
// resubmitted after an exponential backoff delay, up to the attempt budget;
// terminal failures short-circuit.
func (s *Scheduler) runPart(ctx context.Context, st *state, spec planner.PartSpec, exec Executor) (PartResult, error) {
	var res PartResult
	attempt := 0

	expo := backoff.NewExponentialBackOff()
	if s.initialBackoff > 0 {
		expo.InitialInterval = s.initialBackoff
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(s.maxAttempts-1)),
		ctx,
	)

	op := func() error {
		attempt++
		st.transition(spec.PartNumber, PartInFlight)
		r, err := exec(ctx, spec, attempt)
		if err != nil {
			if !xfererrors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			st.transition(spec.PartNumber, PartRetrying)
			s.log.WithFields(logrus.Fields{
				"part":    spec.PartNumber,
				"attempt": attempt,
				"error":   err,
			}).Debug("part attempt failed, retrying")
			return err
		}
		res = r
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return PartResult{}, err //nolint:wrapcheck // annotated by the caller
	}
	return res, nil
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

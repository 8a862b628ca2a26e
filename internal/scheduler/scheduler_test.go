package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/planner"
	"github.com/blobworks/transfer/transfertypes"
)

func testParts(n int) []planner.PartSpec {
	parts := make([]planner.PartSpec, n)
	for i := range parts {
		parts[i] = planner.PartSpec{
			PartNumber: int32(i + 1),
			Offset:     int64(i) * 1024,
			Length:     1024,
		}
	}
	return parts
}

func TestRun_AllPartsSucceed(t *testing.T) {
	sched := New(Config{Concurrency: 4, MaxAttempts: 1})

	exec := func(_ context.Context, spec planner.PartSpec, _ int) (PartResult, error) {
		return PartResult{Bytes: spec.Length}, nil
	}

	results, err := sched.Run(context.Background(), testParts(20), exec)
	require.NoError(t, err)
	require.Len(t, results, 20)

	for i, res := range results {
		assert.Equal(t, int32(i+1), res.PartNumber, "results must be sorted by part number")
		assert.Equal(t, int64(1024), res.Bytes)
	}
}

func TestRun_RetryableFailureEventuallySucceeds(t *testing.T) {
	sched := New(Config{Concurrency: 2, MaxAttempts: 3, InitialBackoff: time.Millisecond})

	var attempts atomic.Int32
	exec := func(_ context.Context, spec planner.PartSpec, attempt int) (PartResult, error) {
		if spec.PartNumber == 2 && attempt < 3 {
			attempts.Add(1)
			return PartResult{}, errors.New("transient")
		}
		return PartResult{Bytes: spec.Length}, nil
	}

	results, err := sched.Run(context.Background(), testParts(3), exec)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, int32(2), attempts.Load(), "part 2 should have failed exactly twice")
}

func TestRun_NonRetryableFailsImmediately(t *testing.T) {
	sched := New(Config{Concurrency: 1, MaxAttempts: 5, InitialBackoff: time.Millisecond})

	var attempts atomic.Int32
	exec := func(_ context.Context, _ planner.PartSpec, _ int) (PartResult, error) {
		attempts.Add(1)
		return PartResult{}, xfererrors.NewError("checksum", xfererrors.ErrSourceMutated)
	}

	_, err := sched.Run(context.Background(), testParts(1), exec)
	require.Error(t, err)
	assert.True(t, xfererrors.IsSourceMutated(err))
	assert.Equal(t, int32(1), attempts.Load(), "terminal failures must not be retried")
}

func TestRun_AttemptBudgetExhausted(t *testing.T) {
	sched := New(Config{Concurrency: 1, MaxAttempts: 3, InitialBackoff: time.Millisecond})

	var attempts atomic.Int32
	exec := func(_ context.Context, _ planner.PartSpec, _ int) (PartResult, error) {
		attempts.Add(1)
		return PartResult{}, errors.New("still broken")
	}

	_, err := sched.Run(context.Background(), testParts(1), exec)
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())

	var xe *xfererrors.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, int32(1), xe.Part, "failure must carry the part number")
}

func TestRun_ConcurrencyNeverExceeded(t *testing.T) {
	const limit = 3
	sched := New(Config{Concurrency: limit, MaxAttempts: 1})

	var inFlight, peak atomic.Int32
	exec := func(_ context.Context, spec planner.PartSpec, _ int) (PartResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return PartResult{Bytes: spec.Length}, nil
	}

	_, err := sched.Run(context.Background(), testParts(30), exec)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestRun_FirstFailureCancelsRemainingParts(t *testing.T) {
	sched := New(Config{Concurrency: 1, MaxAttempts: 1})

	var started atomic.Int32
	exec := func(_ context.Context, spec planner.PartSpec, _ int) (PartResult, error) {
		started.Add(1)
		if spec.PartNumber == 1 {
			return PartResult{}, xfererrors.NewError("upload", xfererrors.ErrSessionFailed)
		}
		return PartResult{Bytes: spec.Length}, nil
	}

	_, err := sched.Run(context.Background(), testParts(50), exec)
	require.Error(t, err)
	// With concurrency 1 the failure is observed before most parts start.
	assert.Less(t, started.Load(), int32(50))
}

func TestRun_ContextCancellation(t *testing.T) {
	sched := New(Config{Concurrency: 2, MaxAttempts: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := func(ctx context.Context, spec planner.PartSpec, _ int) (PartResult, error) {
		return PartResult{Bytes: spec.Length}, nil
	}

	_, err := sched.Run(ctx, testParts(10), exec)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ProgressSink(t *testing.T) {
	var mu sync.Mutex
	seen := map[int32]int64{}
	sink := transfertypes.ProgressSinkFunc(func(partNumber int32, bytes int64) {
		mu.Lock()
		defer mu.Unlock()
		seen[partNumber] += bytes
	})
	sched := New(Config{Concurrency: 4, MaxAttempts: 1, Sink: sink})

	exec := func(_ context.Context, spec planner.PartSpec, _ int) (PartResult, error) {
		return PartResult{Bytes: spec.Length}, nil
	}

	_, err := sched.Run(context.Background(), testParts(8), exec)
	require.NoError(t, err)

	require.Len(t, seen, 8)
	for part, bytes := range seen {
		assert.Equal(t, int64(1024), bytes, fmt.Sprintf("part %d", part))
	}
}

func TestRun_ExecutorReceivesAttemptNumber(t *testing.T) {
	sched := New(Config{Concurrency: 1, MaxAttempts: 2, InitialBackoff: time.Millisecond})

	var got []int
	exec := func(_ context.Context, _ planner.PartSpec, attempt int) (PartResult, error) {
		got = append(got, attempt)
		if attempt == 1 {
			return PartResult{}, errors.New("transient")
		}
		return PartResult{}, nil
	}

	_, err := sched.Run(context.Background(), testParts(1), exec)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

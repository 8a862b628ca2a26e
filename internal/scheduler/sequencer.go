package scheduler

import (
	"context"
	"io"
	"sync"
)

// WriteSequencer flushes concurrently downloaded parts to a writer in
// ascending part-number order. A worker delivering an out-of-order part
// blocks until every earlier part has been flushed, which bounds buffered
// data to the scheduler's concurrency limit.
type WriteSequencer struct {
	mu   sync.Mutex
	cond *sync.Cond

	w       io.Writer
	next    int32
	written int64
	err     error
}

// NewWriteSequencer creates a sequencer expecting parts numbered from 1.
func NewWriteSequencer(w io.Writer) *WriteSequencer {
	ws := &WriteSequencer{w: w, next: 1}
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// Deliver blocks until partNumber is next in sequence, then copies r to the
// underlying writer. It returns early when the sequencer is poisoned or the
// context is cancelled.
func (ws *WriteSequencer) Deliver(ctx context.Context, partNumber int32, r io.Reader) (int64, error) {
	// Wake blocked deliveries when the transfer is cancelled.
	stop := context.AfterFunc(ctx, func() {
		ws.mu.Lock()
		ws.cond.Broadcast()
		ws.mu.Unlock()
	})
	defer stop()

	ws.mu.Lock()
	defer ws.mu.Unlock()

	for ws.err == nil && partNumber != ws.next && ctx.Err() == nil {
		ws.cond.Wait()
	}
	if ws.err != nil {
		return 0, ws.err
	}
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context error is the abort signal
	}

	n, err := io.Copy(ws.w, r)
	ws.written += n
	if err != nil {
		ws.err = err
		ws.cond.Broadcast()
		return n, err //nolint:wrapcheck // annotated by the caller
	}

	ws.next++
	ws.cond.Broadcast()
	return n, nil
}

// Fail poisons the sequencer so blocked deliveries return err.
func (ws *WriteSequencer) Fail(err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.err == nil {
		ws.err = err
	}
	ws.cond.Broadcast()
}

// Written returns the number of bytes flushed so far.
func (ws *WriteSequencer) Written() int64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.written
}

package store

import (
	"context"
	stderrors "errors"
	"sync"
)

// ErrDisposed is returned by operations submitted to, or waiting on, a
// store that has been disposed.
var ErrDisposed = stderrors.New("store disposed")

// queueSize bounds operations waiting behind the one in flight.
const queueSize = 16

// cell owns one piece of state and applies every operation against it
// through a single writer goroutine, in submission order.
type cell[S any] struct {
	mu       sync.RWMutex
	state    S
	disposed bool

	queue   chan func(context.Context)
	changes chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
}

func newCell[S any](initial S) *cell[S] {
	ctx, cancel := context.WithCancel(context.Background())
	return &cell[S]{
		state:   initial,
		queue:   make(chan func(context.Context), queueSize),
		changes: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *cell[S]) start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

func (c *cell[S]) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case job := <-c.queue:
			if c.ctx.Err() != nil {
				return
			}
			job(c.ctx)
		}
	}
}

// enqueue schedules job without waiting. It is used for the automatic
// load, queued before any caller can submit.
func (c *cell[S]) enqueue(job func(context.Context)) {
	select {
	case c.queue <- job:
	case <-c.ctx.Done():
	}
}

// submit schedules job and waits for it to finish. The job context keeps
// the caller's values and is canceled when either the caller or the store
// goes away.
func (c *cell[S]) submit(ctx context.Context, job func(context.Context)) error {
	done := make(chan struct{})
	wrapped := func(storeCtx context.Context) {
		defer close(done)

		jobCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(storeCtx, cancel)
		defer stop()

		job(jobCtx)
	}

	select {
	case c.queue <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrDisposed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrDisposed
	}
}

// update applies fn to the state and signals a change. After dispose it
// does nothing and reports false.
func (c *cell[S]) update(fn func(*S)) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.mu.Unlock()

	select {
	case c.changes <- struct{}{}:
	default:
	}
	return true
}

func (c *cell[S]) read(fn func(*S)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(&c.state)
}

func (c *cell[S]) dispose() {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *cell[S]) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

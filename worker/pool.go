// Package worker runs pipeline invocations on a bounded set of goroutines.
//
// Callers submit a function and block until its typed result is ready. A
// panic inside the function is recovered and returned as a *SystemError so it
// never crashes the submitting goroutine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the pool size used when a non-positive size is requested.
const DefaultSize = 4

// ErrClosed is returned by Do after Close was called.
var ErrClosed = errors.New("worker pool closed")

// SystemError reports a panic recovered from submitted work.
type SystemError struct {
	Value any
	Stack []byte
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *SystemError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Pool bounds the number of concurrently running units of work.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a pool running at most size units at once.
func NewPool(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn on a pool goroutine and waits for its result. It returns
// ctx.Err() if ctx ends while waiting for a slot or for the result; in the
// latter case fn keeps its slot until it returns.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				p.logger.Error("Recovered panic in worker", "panic", r, "stack", string(stack))
				done <- result{err: &SystemError{Value: r, Stack: stack}}
			}
		}()

		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops accepting work and waits for running units to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Wait()
}

// Wait blocks until every submitted unit has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

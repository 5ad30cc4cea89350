// Package bridge owns the executor that the blocking connection API
// drives its asynchronous work on. Its one primitive is [BlockOn]:
// hand a task to the runtime, park the calling goroutine until the
// task finishes, return the task's result.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/httpbridge/validate"
)

var (
	// ErrClosed indicates the runtime has been shut down.
	ErrClosed = errors.New("runtime closed")

	// ErrNestedBlock indicates a task running on a runtime called
	// [BlockOn] against that same runtime.
	ErrNestedBlock = errors.New("nested BlockOn against the same runtime")

	// ErrTaskPanic indicates the task panicked. The recovered value is
	// carried in the error message.
	ErrTaskPanic = errors.New("task panicked")
)

// Config holds the runtime's tunable settings.
type Config struct {
	Workers int `json:"workers" validate:"gte=1,lte=4096"`
}

// Task is a unit of asynchronous work producing a T. A task must honor
// ctx cancellation: one that ignores it can park its caller for as
// long as the task runs.
type Task[T any] func(ctx context.Context) (T, error)

// Runtime is a bounded executor shared by any number of holders. Each
// holder owns one reference: the constructor hands out the first,
// [Runtime.Retain] adds more, and [Runtime.Close] releases one. The
// final release shuts the executor down.
type Runtime struct {
	sem      chan struct{}
	wg       sync.WaitGroup
	refs     atomic.Int64
	shutdown atomic.Bool
	logger   *slog.Logger
}

// New constructs a Runtime. Workers defaults to [runtime.NumCPU].
func New(optFns ...Option) (*Runtime, error) {
	var opts options
	for _, optFn := range optFns {
		if err := optFn(&opts); err != nil {
			return nil, fmt.Errorf("applying runtime option: %w", err)
		}
	}

	cfg := Config{Workers: runtime.NumCPU()}
	if opts.workers != nil {
		cfg.Workers = *opts.workers
	}
	if err := validate.Check(cfg); err != nil {
		return nil, fmt.Errorf("runtime config: %w", err)
	}

	rt := Runtime{
		sem:    make(chan struct{}, cfg.Workers),
		logger: slog.Default(),
	}
	if opts.logger != nil {
		rt.logger = opts.logger
	}
	rt.refs.Store(1)

	return &rt, nil
}

// Workers returns the executor's concurrency bound.
func (rt *Runtime) Workers() int {
	return cap(rt.sem)
}

// Retain registers another holder and returns rt for chaining. It must
// be called by a holder of a live reference; the new holder gives its
// reference back with Close.
func (rt *Runtime) Retain() *Runtime {
	rt.refs.Add(1)
	return rt
}

// Close releases the caller's reference. The final Close shuts the
// executor down and blocks until in-flight tasks drain. Closing more
// times than the runtime was retained returns ErrClosed.
func (rt *Runtime) Close() error {
	n := rt.refs.Add(-1)
	switch {
	case n < 0:
		rt.refs.Add(1)
		return ErrClosed
	case n == 0:
		rt.shutdown.Store(true)
		rt.wg.Wait()
	}

	return nil
}

type ctxKey int

const taskKey ctxKey = iota + 1

// result carries one task's outcome back across the executor boundary.
// The done channel closing publishes val and err to the caller.
type result[T any] struct {
	val  T
	err  error
	done chan struct{}
}

// BlockOn runs task on rt and parks the calling goroutine until the
// task completes, returning its result. Each concurrent caller holds
// one worker slot for the life of its task; callers beyond the bound
// wait for a slot, honoring ctx while they do.
//
// A task must not call BlockOn against the runtime it is running on.
// That call fails immediately with [ErrNestedBlock] rather than risk
// deadlocking on slot exhaustion.
func BlockOn[T any](rt *Runtime, ctx context.Context, task Task[T]) (T, error) {
	var zero T

	if rt.shutdown.Load() {
		return zero, ErrClosed
	}
	if owner, ok := ctx.Value(taskKey).(*Runtime); ok && owner == rt {
		return zero, ErrNestedBlock
	}

	taskCtx := context.WithValue(ctx, taskKey, rt)
	res := result[T]{done: make(chan struct{})}

	rt.wg.Add(1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				rt.logger.Error("recovered task panic", "panic", rec)
				res.err = fmt.Errorf("%w: %v", ErrTaskPanic, rec)
			}
			close(res.done)
			rt.wg.Done()
		}()

		select {
		case rt.sem <- struct{}{}:
			defer func() {
				<-rt.sem
			}()
		case <-taskCtx.Done():
			res.err = taskCtx.Err()
			return
		}

		// Re-check after acquiring a slot; the runtime may have been
		// closed while this task waited.
		if rt.shutdown.Load() {
			res.err = ErrClosed
			return
		}

		res.val, res.err = task(taskCtx)
	}()

	<-res.done

	return res.val, res.err
}

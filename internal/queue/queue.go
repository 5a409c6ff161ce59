// Package queue serializes every operation that touches the local store.
//
// Operations run one at a time in submission order on a single worker
// goroutine. Submitting never blocks: the caller receives a Future and waits
// on it when it needs the result. Sync requests are merged so at most one
// sync is queued or running at any moment.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("operation queue closed")

// ErrSyncMismatch is returned when a sync request cannot merge with the
// outstanding one because their result types differ.
var ErrSyncMismatch = errors.New("a sync with a different result type is pending")

// Op is a unit of work run on the queue.
type Op[T any] func(ctx context.Context) (T, error)

// SyncState reports whether a merged sync is outstanding.
type SyncState int

const (
	// SyncIdle means no sync is queued or running.
	SyncIdle SyncState = iota
	// SyncPending means a sync is queued or running; new requests join it.
	SyncPending
)

func (s SyncState) String() string {
	if s == SyncPending {
		return "pending"
	}
	return "idle"
}

// Config tunes a Queue.
type Config struct {
	// Logger receives one entry per failed operation.
	Logger *zap.Logger

	// OnError, if set, is called with every operation failure after logging.
	// It runs on the worker goroutine and must not submit to the queue.
	OnError func(name string, err error)
}

type job struct {
	name string
	run  func(ctx context.Context)
}

// Queue is a FIFO execution lane with concurrency 1.
type Queue struct {
	logger  *zap.Logger
	onError func(string, error)

	mu      sync.Mutex
	pending []job
	closed  bool
	wake    chan struct{}

	syncMu     sync.Mutex
	syncFuture any

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a queue worker.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger:  logger.Named("queue"),
		onError: cfg.OnError,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go q.loop()
	return q
}

// Enqueue appends op to the queue and returns immediately.
// name identifies the operation in logs.
func Enqueue[T any](q *Queue, name string, op Op[T]) *Future[T] {
	f := newFuture[T]()

	j := job{
		name: name,
		run: func(ctx context.Context) {
			v, err := runSafely(ctx, q, name, op)
			if err != nil {
				q.report(name, err)
			}
			f.resolve(v, err)
		},
	}

	if !q.push(j) {
		var zero T
		f.resolve(zero, ErrClosed)
	}
	return f
}

// Do enqueues op and waits for its result.
// Cancelling ctx stops the wait, not the operation.
func Do[T any](ctx context.Context, q *Queue, name string, op Op[T]) (T, error) {
	return Enqueue(q, name, op).Wait(ctx)
}

// Exec is Do for operations without a result.
func Exec(ctx context.Context, q *Queue, name string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, q, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// EnqueueSync submits a sync operation unless one is already queued or
// running, in which case the outstanding Future is returned and op is
// discarded. The pending slot is released when the operation settles, so a
// request arriving after completion starts a new sync.
func (q *Queue) EnqueueSync(op func(ctx context.Context) error) *Future[struct{}] {
	return EnqueueSyncResult(q, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
}

// EnqueueSyncResult is EnqueueSync for operations with a result. Every merged
// caller receives the value of the one run they share. A request whose type
// differs from the outstanding sync's fails with ErrSyncMismatch.
func EnqueueSyncResult[T any](q *Queue, op Op[T]) *Future[T] {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()

	if q.syncFuture != nil {
		if f, ok := q.syncFuture.(*Future[T]); ok {
			return f
		}
		f := newFuture[T]()
		var zero T
		f.resolve(zero, ErrSyncMismatch)
		return f
	}

	f := newFuture[T]()
	q.syncFuture = f

	j := job{
		name: "sync",
		run: func(ctx context.Context) {
			v, err := runSafely(ctx, q, "sync", op)
			if err != nil {
				q.report("sync", err)
			}

			q.syncMu.Lock()
			q.syncFuture = nil
			q.syncMu.Unlock()

			f.resolve(v, err)
		},
	}

	if !q.push(j) {
		q.syncFuture = nil
		var zero T
		f.resolve(zero, ErrClosed)
	}
	return f
}

// SyncState reports whether a merged sync is outstanding.
func (q *Queue) SyncState() SyncState {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()
	if q.syncFuture != nil {
		return SyncPending
	}
	return SyncIdle
}

// Len returns the number of operations waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting operations, lets the queued ones finish and waits
// for the worker to exit or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.signal()
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) push(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.pending = append(q.pending, j)
	q.signal()
	return true
}

// signal wakes the worker. Callers hold q.mu.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			continue
		}
		j := q.pending[0]
		q.pending[0] = job{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		j.run(q.ctx)
	}
}

func runSafely[T any](ctx context.Context, q *Queue, name string, op Op[T]) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("operation %s panicked: %v", name, p)
			q.logger.Error("operation panicked",
				zap.String("op", name), zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return op(ctx)
}

func (q *Queue) report(name string, err error) {
	q.logger.Warn("operation failed", zap.String("op", name), zap.Error(err))
	if q.onError != nil {
		q.onError(name, err)
	}
}

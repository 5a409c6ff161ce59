package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

// Options configures an Engine. DB and Queue are required.
type Options struct {
	DB        store.Adapter
	Queue     *queue.Queue
	Publisher notify.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Engine implements Syncer over a store adapter with a replica.
type Engine struct {
	db     store.Adapter
	queue  *queue.Queue
	pub    notify.Publisher
	logger *zap.Logger
	now    func() time.Time

	last atomic.Pointer[Status]
}

var _ Syncer = (*Engine)(nil)

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		db:     opts.DB,
		queue:  opts.Queue,
		pub:    opts.Publisher,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if e.pub == nil {
		e.pub = notify.Nop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("sync")
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Sync implements Syncer.Sync.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	if !e.db.HasReplica() {
		return Result{}, fmt.Errorf("%w: %w", ErrSyncFailed, store.ErrNoReplica)
	}

	st, err := queue.EnqueueSyncResult(e.queue, e.cycle).Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	return st.Result, nil
}

// Last implements Syncer.Last.
func (e *Engine) Last() (Status, bool) {
	st := e.last.Load()
	if st == nil {
		return Status{}, false
	}
	return *st, true
}

// cycle runs on the queue's sync lane. Its Status reaches every merged
// caller through the shared Future.
func (e *Engine) cycle(ctx context.Context) (Status, error) {
	start := e.now()
	repo := dictionary.NewRepository(e.db)
	res := Result{StartedAt: start}

	fail := func(step string, err error) (Status, error) {
		err = fmt.Errorf("%w: %s: %w", ErrSyncFailed, step, err)
		st := Status{Result: res, Err: err, At: e.now()}
		e.last.Store(&st)
		e.logger.Warn("sync cycle aborted", zap.String("step", step), zap.Error(err))
		e.pub.Publish(notify.Event{Kind: notify.SyncFailed, Reason: step, Error: err.Error()})
		return st, err
	}

	before, err := repo.MaxUpdatedAt(ctx)
	if err != nil {
		return fail("read watermark", err)
	}
	res.WatermarkBefore = before

	if err := e.db.Pull(ctx); err != nil {
		return fail("pull", err)
	}
	if err := e.db.Push(ctx); err != nil {
		return fail("push", err)
	}

	after, err := repo.MaxUpdatedAt(ctx)
	if err != nil {
		return fail("read watermark", err)
	}
	res.WatermarkAfter = after
	res.Changed = after != before

	if res.Entries, err = repo.CountEntries(ctx); err != nil {
		return fail("count entries", err)
	}
	res.Duration = e.now().Sub(start)
	st := Status{Result: res, At: e.now()}
	e.last.Store(&st)

	if res.Changed {
		e.pub.Publish(notify.Event{Kind: notify.DatasetChanged, Reason: "sync", Count: res.Entries})
	}
	e.pub.Publish(notify.Event{Kind: notify.SyncComplete, Count: res.Entries})

	e.logger.Info("sync complete",
		zap.Int64("watermark_before", before), zap.Int64("watermark_after", after),
		zap.Bool("changed", res.Changed), zap.Int("entries", res.Entries),
		zap.Duration("duration", res.Duration))
	return st, nil
}

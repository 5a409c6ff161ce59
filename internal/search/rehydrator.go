package search

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/notify"
)

// Rehydrator rebuilds the engine whenever the dataset changes in bulk.
// Triggers that arrive while a rebuild is running collapse into one
// follow-up rebuild.
type Rehydrator struct {
	engine *Engine
	src    RowSource
	pub    notify.Publisher
	logger *zap.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRehydrator creates a Rehydrator. pub may be nil.
func NewRehydrator(engine *Engine, src RowSource, pub notify.Publisher, logger *zap.Logger) *Rehydrator {
	if pub == nil {
		pub = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rehydrator{
		engine:  engine,
		src:     src,
		pub:     pub,
		logger:  logger.Named("rehydrator"),
		trigger: make(chan struct{}, 1),
	}
}

// Start runs the rebuild loop until ctx is done or Stop is called.
func (r *Rehydrator) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.trigger:
				r.run(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight rebuild.
func (r *Rehydrator) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Trigger schedules a rebuild without blocking.
func (r *Rehydrator) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// HandleEvent is a notify.Handler.
func (r *Rehydrator) HandleEvent(ev notify.Event) {
	if ev.Kind == notify.DatasetChanged {
		r.logger.Debug("dataset changed", zap.String("reason", ev.Reason))
		r.Trigger()
	}
}

func (r *Rehydrator) run(ctx context.Context) {
	stats, err := r.engine.Rehydrate(ctx, r.src)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("rehydrate failed", zap.Error(err))
		}
		return
	}
	r.pub.Publish(notify.Event{
		Kind:  notify.RehydrateComplete,
		Count: stats.Indexed,
	})
}

package impex

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

const (
	DefaultImportBatchSize = 100
	DefaultExportBatchSize = 500
)

// Mirror forwards an accepted snapshot to the remote API. It must not block.
type Mirror interface {
	Import(ctx context.Context, filename string, data []byte)
}

// Options configures a Pipeline. DB and Queue are required.
type Options struct {
	DB        store.Adapter
	Queue     *queue.Queue
	Publisher notify.Publisher
	Mirror    Mirror
	Logger    *zap.Logger
	Now       func() time.Time
}

// Pipeline runs imports and exports against one store.
type Pipeline struct {
	db     store.Adapter
	queue  *queue.Queue
	pub    notify.Publisher
	mirror Mirror
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		db:     opts.DB,
		queue:  opts.Queue,
		pub:    opts.Publisher,
		mirror: opts.Mirror,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if p.pub == nil {
		p.pub = notify.Nop{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("impex")
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

package remote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mirror replays local bulk operations against the remote API in the
// background. Failures are logged and never retried.
type Mirror struct {
	client  *Client
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewMirror creates a Mirror over client.
func NewMirror(client *Client, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{client: client, logger: logger.Named("mirror"), timeout: client.httpClient.Timeout}
}

// DeleteAll mirrors a local delete-all.
func (m *Mirror) DeleteAll(ctx context.Context) {
	m.fire(ctx, "delete_all", m.client.DeleteAll)
}

// Import mirrors a local import by uploading the same snapshot.
func (m *Mirror) Import(ctx context.Context, filename string, data []byte) {
	m.fire(ctx, "import", func(ctx context.Context) error {
		return m.client.Import(ctx, filename, data)
	})
}

// Wait blocks until every background request has finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

func (m *Mirror) fire(ctx context.Context, op string, fn func(context.Context) error) {
	// Detach from the caller so a finished command does not cancel the mirror.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if err := fn(ctx); err != nil {
			m.logger.Warn("remote mirror failed", zap.String("op", op), zap.Error(err))
			return
		}
		m.logger.Debug("remote mirror done", zap.String("op", op))
	}()
}

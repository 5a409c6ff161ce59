// Package daemon runs bahar in the background: it syncs the local replica on
// a fixed interval and imports snapshot files dropped into an inbox
// directory.
//
// Imported files are moved to inbox/processed, rejected ones to
// inbox/failed. Sync failures are logged and retried on the next tick.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/impex"
	"github.com/Shunseii/bahar-sub001/internal/store"
	bsync "github.com/Shunseii/bahar-sub001/internal/sync"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Importer applies a snapshot.
type Importer interface {
	Import(ctx context.Context, r io.Reader, opts impex.ImportOptions) (*impex.ImportReport, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to run a sync cycle. Zero disables syncing.
	SyncInterval time.Duration

	// InboxDir is watched for *.json snapshots. Empty disables the inbox.
	InboxDir string

	// Debounce is how long a file must stay quiet before it is imported.
	Debounce time.Duration

	// ImportOptions are used for every inbox import.
	ImportOptions impex.ImportOptions

	Logger *zap.Logger
}

// DefaultConfig returns a five minute sync interval and a 500ms debounce.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval: 5 * time.Minute,
		Debounce:     500 * time.Millisecond,
	}
}

// Daemon owns the sync timer and the inbox watcher.
type Daemon struct {
	syncer   bsync.Syncer
	importer Importer
	config   *Config
	logger   *zap.Logger

	watcher   *InboxWatcher
	pending   map[string]time.Time // path -> last event
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// New creates a Daemon. syncer may be nil when the store has no replica;
// importer may be nil when there is no inbox.
func New(syncer bsync.Syncer, importer Importer, config *Config) (*Daemon, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.InboxDir != "" && importer == nil {
		return nil, fmt.Errorf("importer cannot be nil when an inbox is configured")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Daemon{
		syncer:   syncer,
		importer: importer,
		config:   config,
		logger:   logger.Named("daemon"),
		pending:  make(map[string]time.Time),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	if config.InboxDir != "" {
		w, err := NewInboxWatcher()
		if err != nil {
			return nil, err
		}
		d.watcher = w
	}
	return d, nil
}

// Start runs an initial sync, imports files already waiting in the inbox,
// then watches and ticks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("starting daemon",
		zap.Duration("sync_interval", d.config.SyncInterval), zap.String("inbox", d.config.InboxDir))

	if d.syncEnabled() {
		d.SyncNow(ctx)
	}

	if d.watcher != nil {
		for _, dir := range []string{d.config.InboxDir, d.inboxSub(processedDir), d.inboxSub(failedDir)} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create inbox directory: %w", err)
			}
		}
		if err := d.watcher.Start(d.config.InboxDir); err != nil {
			return err
		}
		if err := d.queueExisting(); err != nil {
			d.logger.Warn("failed to scan inbox", zap.Error(err))
		}

		d.wg.Add(2)
		go d.watchInbox()
		go d.processPending()
	}

	if d.syncEnabled() {
		d.wg.Add(1)
		go d.syncLoop()
	}

	select {
	case <-ctx.Done():
		d.logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down and waits for background work to finish.
func (d *Daemon) Stop() error {
	var err error
	d.stop.Do(func() {
		d.logger.Info("stopping daemon")
		d.cancel()
		if d.watcher != nil {
			if werr := d.watcher.Stop(); werr != nil {
				err = werr
			}
		}
		d.wg.Wait()
		d.logger.Info("daemon stopped")
	})
	return err
}

// SyncNow runs one sync cycle and logs the outcome.
func (d *Daemon) SyncNow(ctx context.Context) {
	if d.syncer == nil {
		return
	}
	res, err := d.syncer.Sync(ctx)
	switch {
	case errors.Is(err, store.ErrNoReplica):
		d.logger.Debug("sync skipped: no replica")
	case err != nil:
		d.logger.Warn("sync failed", zap.Error(err))
	default:
		d.logger.Debug("sync complete", zap.Bool("changed", res.Changed), zap.Int("entries", res.Entries))
	}
}

func (d *Daemon) syncEnabled() bool {
	return d.syncer != nil && d.config.SyncInterval > 0
}

func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.SyncNow(d.ctx)
		}
	}
}

func (d *Daemon) watchInbox() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", ev.Path))
			d.queueFile(ev.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (d *Daemon) queueFile(path string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.pending[path] = time.Now()
}

// queueExisting picks up snapshots dropped while the daemon was not running.
func (d *Daemon) queueExisting() error {
	entries, err := os.ReadDir(d.config.InboxDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			abs, err := filepath.Abs(filepath.Join(d.config.InboxDir, e.Name()))
			if err != nil {
				return err
			}
			d.queueFile(abs)
		}
	}
	return nil
}

func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			for _, path := range d.readyFiles() {
				d.importFile(d.ctx, path)
			}
		}
	}
}

// readyFiles removes and returns paths that have been quiet for the debounce
// interval, oldest name first.
func (d *Daemon) readyFiles() []string {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	now := time.Now()
	var ready []string
	for path, at := range d.pending {
		if now.Sub(at) < d.config.Debounce {
			continue
		}
		ready = append(ready, path)
		delete(d.pending, path)
	}
	sort.Strings(ready)
	return ready
}

// importFile imports one snapshot and moves it out of the inbox.
func (d *Daemon) importFile(ctx context.Context, path string) {
	logger := d.logger.With(zap.String("file", filepath.Base(path)))

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Warn("failed to open inbox file", zap.Error(err))
		return
	}

	opts := d.config.ImportOptions
	opts.SourceName = filepath.Base(path)
	report, err := d.importer.Import(ctx, f, opts)
	f.Close()

	if ctx.Err() != nil {
		// Shutting down; leave the file for the next run.
		return
	}

	dest := processedDir
	if err != nil {
		dest = failedDir
		logger.Warn("inbox import failed", zap.Error(err))
	} else {
		logger.Info("inbox import complete", zap.Int("imported", report.Imported))
	}

	if err := d.moveTo(path, dest); err != nil {
		logger.Error("failed to move inbox file", zap.String("dest", dest), zap.Error(err))
	}
}

func (d *Daemon) inboxSub(name string) string {
	return filepath.Join(d.config.InboxDir, name)
}

// moveTo renames path into the given inbox subdirectory, adding a timestamp
// when the name is taken.
func (d *Daemon) moveTo(path, sub string) error {
	target := filepath.Join(d.inboxSub(sub), filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	return os.Rename(path, target)
}

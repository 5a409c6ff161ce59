// Package app assembles the bahar services from a loaded configuration.
//
// Open chooses the store flavour, runs migrations, starts the operation
// queue and the change hub, and loads the search index before returning.
// Close tears everything down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/config"
	"github.com/Shunseii/bahar-sub001/internal/daemon"
	"github.com/Shunseii/bahar-sub001/internal/dashboard"
	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/impex"
	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/remote"
	"github.com/Shunseii/bahar-sub001/internal/scheduler"
	"github.com/Shunseii/bahar-sub001/internal/scheduler/fsrs"
	"github.com/Shunseii/bahar-sub001/internal/search"
	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/store/migrations"
	bsync "github.com/Shunseii/bahar-sub001/internal/sync"
)

// App holds the wired services.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB         *store.SQLAdapter
	Queue      *queue.Queue
	Hub        *notify.Hub
	Search     *search.Engine
	Rehydrator *search.Rehydrator
	Dictionary *dictionary.Service
	Scheduler  *scheduler.Service
	Sync       *bsync.Engine
	Impex      *impex.Pipeline

	// Remote and Mirror are nil unless remote.api_url is set.
	Remote *remote.Client
	Mirror *remote.Mirror

	unsubscribe []func()
}

// OpenStore opens the adapter selected by cfg.Mode.
func OpenStore(cfg config.DatabaseConfig) (*store.SQLAdapter, error) {
	switch cfg.Mode {
	case config.ModeReplica:
		return store.OpenReplica(store.ReplicaConfig{
			Path:       cfg.Path,
			PrimaryURL: cfg.ReplicaURL,
			AuthToken:  cfg.AuthToken,
		})
	case config.ModeLocal, "":
		return store.OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database mode %q", cfg.Mode)
	}
}

// SearchConfig converts the search section.
func SearchConfig(cfg config.SearchConfig, logger *zap.Logger) search.Config {
	return search.Config{
		Boosts: search.Boosts{
			search.FieldWord:        cfg.Boosts.Word,
			search.FieldTranslation: cfg.Boosts.Translation,
			search.FieldDefinition:  cfg.Boosts.Definition,
			search.FieldTags:        cfg.Boosts.Tags,
			search.FieldMorphology:  cfg.Boosts.Morphology,
		},
		Tolerance: search.Tolerance{ShortMax: cfg.ShortMax, MediumMax: cfg.MediumMax},
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	}
}

// FSRSParameters converts the schedule section. Steps must already be parsed
// by Config.Validate.
func FSRSParameters(cfg config.ScheduleConfig) fsrs.Parameters {
	p := fsrs.DefaultParameters()
	p.DesiredRetention = cfg.DesiredRetention
	p.MaxIntervalDays = cfg.MaxIntervalDays
	p.EnableFuzz = cfg.EnableFuzz
	if cfg.LearningSteps != nil {
		p.LearningSteps = cfg.LearningSteps
	}
	if cfg.RelearningSteps != nil {
		p.RelearningSteps = cfg.RelearningSteps
	}
	return p
}

// Open builds every service. The returned App must be closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := OpenStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	applied, err := migrations.NewRunner(db, logger).Up(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		logger.Info("applied migrations", zap.Int("count", applied), zap.String("path", cfg.Database.Path))
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Queue:  queue.New(queue.Config{Logger: logger}),
		Hub:    notify.NewHub(logger),
	}

	if cfg.Remote.Enabled() {
		a.Remote = remote.NewClient(remote.Config{
			BaseURL: cfg.Remote.APIURL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
		}, logger)
		a.Mirror = remote.NewMirror(a.Remote, logger)
	}

	a.Search = search.NewEngine(SearchConfig(cfg.Search, logger))

	dictOpts := dictionary.Options{
		DB:        db,
		Queue:     a.Queue,
		Index:     a.Search,
		Publisher: a.Hub,
		Logger:    logger,
	}
	impexOpts := impex.Options{
		DB:        db,
		Queue:     a.Queue,
		Publisher: a.Hub,
		Logger:    logger,
	}
	// Assigning a nil *remote.Mirror to the interfaces would make them non-nil.
	if a.Mirror != nil {
		dictOpts.Mirror = a.Mirror
		impexOpts.Mirror = a.Mirror
	}
	a.Dictionary = dictionary.NewService(dictOpts)
	a.Impex = impex.New(impexOpts)

	a.Scheduler, err = scheduler.NewService(scheduler.Options{
		DB:               db,
		Queue:            a.Queue,
		Params:           FSRSParameters(cfg.Schedule),
		BacklogThreshold: cfg.Schedule.BacklogThreshold(),
		Publisher:        a.Hub,
		Logger:           logger,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	a.Sync = bsync.New(bsync.Options{
		DB:        db,
		Queue:     a.Queue,
		Publisher: a.Hub,
		Logger:    logger,
	})

	stats, err := a.Search.Rehydrate(ctx, a.Dictionary)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to load search index: %w", err)
	}
	logger.Debug("search index loaded", zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped))

	a.Rehydrator = search.NewRehydrator(a.Search, a.Dictionary, a.Hub, logger)
	a.Rehydrator.Start(context.Background())
	a.unsubscribe = append(a.unsubscribe,
		a.Hub.Subscribe("rehydrator", a.Rehydrator.HandleEvent, notify.DatasetChanged))

	return a, nil
}

// NewDaemon creates a daemon over this app's sync engine and import
// pipeline. Sync is left out when the store has no replica.
func (a *App) NewDaemon() (*daemon.Daemon, error) {
	var syncer bsync.Syncer
	if a.DB.HasReplica() {
		syncer = a.Sync
	}
	return daemon.New(syncer, a.Impex, &daemon.Config{
		SyncInterval: a.Config.Daemon.SyncInterval,
		InboxDir:     a.Config.Daemon.InboxDir,
		Debounce:     a.Config.Daemon.Debounce,
		ImportOptions: impex.ImportOptions{
			BatchSize: a.Config.Impex.BatchSize,
			Atomic:    a.Config.Impex.Atomic,
		},
		Logger: a.Logger,
	})
}

// NewDashboard creates a dashboard server fed by this app's hub. The
// server is not started. The returned function detaches it from the hub.
func (a *App) NewDashboard(port int) (*dashboard.Server, func()) {
	server := dashboard.NewServer(dashboard.Config{
		Port:   port,
		Stats:  a,
		Logger: a.Logger,
	})
	detach := dashboard.NewHandler(server, a.Logger).Attach(a.Hub)
	return server, detach
}

// Stats implements dashboard.StatsProvider.
func (a *App) Stats(ctx context.Context) (dashboard.StatsData, error) {
	entries, err := a.Dictionary.CountEntries(ctx)
	if err != nil {
		return dashboard.StatsData{}, err
	}
	counts, err := a.Scheduler.Counts(ctx, scheduler.QueueOptions{})
	if err != nil {
		return dashboard.StatsData{}, err
	}

	out := dashboard.StatsData{
		Entries:   entries,
		Indexed:   a.Search.Len(),
		Due:       counts.Regular,
		Backlog:   counts.Backlog,
		SyncState: a.Queue.SyncState().String(),
	}
	if st, ok := a.Sync.Last(); ok {
		out.LastSync = st.At.Format(time.RFC3339)
	}
	return out, nil
}

// Close stops background work, drains the queue and closes the store.
func (a *App) Close(ctx context.Context) error {
	for _, u := range a.unsubscribe {
		u()
	}
	if a.Rehydrator != nil {
		a.Rehydrator.Stop()
	}
	a.Hub.Close()

	var errs []error
	if err := a.Queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain queue: %w", err))
	}
	if a.Mirror != nil {
		a.Mirror.Wait()
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}

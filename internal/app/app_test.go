package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/config"
	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/impex"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/search"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

func openTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "bahar.db")

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestOpenStoreRejectsUnknownMode(t *testing.T) {
	_, err := OpenStore(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "x.db"), Mode: "cloud"})
	assert.ErrorContains(t, err, "unknown database mode")
}

func TestOpenLocalHasNoReplica(t *testing.T) {
	a := openTestApp(t)

	assert.False(t, a.DB.HasReplica())
	assert.Nil(t, a.Remote)

	_, err := a.Sync.Sync(context.Background())
	assert.ErrorIs(t, err, store.ErrNoReplica)
}

func TestWritesReachSearch(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	e, err := a.Dictionary.CreateEntry(ctx, dictionary.EntryInput{
		Word:        "كتاب",
		Translation: "book",
		Type:        schema.WordTypeIsm,
	})
	require.NoError(t, err)

	res, err := a.Search.Search(ctx, search.Query{Term: "book"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, e.ID, res.Hits[0].Entry.ID)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Due, "reverse cards stay out of the queue by default")
	assert.Empty(t, stats.LastSync)
}

func TestIndexLoadedOnOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "bahar.db")
	ctx := context.Background()

	first, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = first.Dictionary.CreateEntry(ctx, dictionary.EntryInput{Word: "قلم", Translation: "pen", Type: schema.WordTypeIsm})
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close(ctx)

	assert.Equal(t, 1, second.Search.Len())
}

func TestImportTriggersRehydrate(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	snapshot := `{"version":"v1.0.0","entries":[
		{"id":"e1","word":"بيت","translation":"house","type":"ism",
		 "created_at":"2024-01-01T00:00:00.000Z","created_at_timestamp_ms":1704067200000,
		 "updated_at":"2024-01-01T00:00:00.000Z","updated_at_timestamp_ms":1704067200000}]}`

	_, err := a.Impex.Import(ctx, bytes.NewBufferString(snapshot), impex.ImportOptions{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		res, err := a.Search.Search(ctx, search.Query{Term: "house"})
		return err == nil && len(res.Hits) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = a.Dictionary.DeleteAll(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return a.Search.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFSRSParameters(t *testing.T) {
	cfg := config.Default().Schedule
	cfg.DesiredRetention = 0.85
	cfg.EnableFuzz = true
	cfg.LearningSteps = []time.Duration{5 * time.Minute}

	p := FSRSParameters(cfg)
	assert.Equal(t, 0.85, p.DesiredRetention)
	assert.True(t, p.EnableFuzz)
	assert.Equal(t, []time.Duration{5 * time.Minute}, p.LearningSteps)
	assert.NoError(t, p.Validate())
}

func TestSearchConfigCarriesTolerance(t *testing.T) {
	cfg := config.Default().Search
	cfg.MediumMax = 3

	sc := SearchConfig(cfg, nil)
	assert.Equal(t, search.DesktopTolerance, sc.Tolerance)
	assert.Equal(t, 10.0, sc.Boosts[search.FieldWord])
}

func TestDashboardServesStats(t *testing.T) {
	a := openTestApp(t)

	server, detach := a.NewDashboard(0)
	defer detach()
	require.NoError(t, server.Start())
	defer server.Stop()

	assert.NotEmpty(t, server.Addr())
}

func TestNewDaemonWithoutReplica(t *testing.T) {
	a := openTestApp(t)
	a.Config.Daemon.InboxDir = filepath.Join(t.TempDir(), "inbox")

	d, err := a.NewDaemon()
	require.NoError(t, err)
	require.NoError(t, d.Stop())
}

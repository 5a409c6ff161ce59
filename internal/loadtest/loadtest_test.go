package loadtest

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/scheduler"
	"github.com/Shunseii/bahar-sub001/internal/search"
	"github.com/Shunseii/bahar-sub001/internal/store/storetest"
)

func newTargets(t *testing.T) Targets {
	t.Helper()

	db := storetest.Open(t)
	q := queue.New(queue.Config{})
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	engine := search.NewEngine(search.Config{})
	sched, err := scheduler.NewService(scheduler.Options{DB: db, Queue: q})
	require.NoError(t, err)

	return Targets{
		Dictionary: dictionary.NewService(dictionary.Options{DB: db, Queue: q, Index: engine}),
		Search:     engine,
		Scheduler:  sched,
	}
}

func TestSeed(t *testing.T) {
	targets := newTargets(t)
	ctx := context.Background()

	ds, err := Seed(ctx, targets.Dictionary, 40, 42)
	require.NoError(t, err)

	assert.Len(t, ds.EntryIDs, 40)
	assert.Len(t, ds.CardIDs, 80, "each entry gets a forward and a reverse card")
	assert.Equal(t, 40, targets.Search.Len())

	n, err := targets.Dictionary.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	require.NoError(t, VerifyIndexConsistency(ctx, targets, ds))
}

func TestGenerateEntriesIsDeterministic(t *testing.T) {
	a := generateEntries(rand.New(rand.NewSource(7)), 20)
	b := generateEntries(rand.New(rand.NewSource(7)), 20)
	assert.Equal(t, a, b)

	for _, in := range a {
		assert.NotEmpty(t, in.Word)
		assert.True(t, in.Type.IsValid())
		assert.Contains(t, in.Tags, SeedTag)
	}
}

func TestRunMixedWorkload(t *testing.T) {
	targets := newTargets(t)
	ctx := context.Background()

	ds, err := Seed(ctx, targets.Dictionary, 60, 42)
	require.NoError(t, err)

	wl := Workload{Entries: 60, Workers: 8, OpsPerWorker: 10, GradeRatio: 0.3, Seed: 42}
	report, err := Run(ctx, targets, ds, wl)
	require.NoError(t, err)

	assert.Zero(t, report.Search.Errors)
	assert.Zero(t, report.Grade.Errors)
	assert.Equal(t, 80, report.Search.TotalQueries+report.Grade.TotalQueries)
	assert.Positive(t, report.Search.TotalQueries)
	assert.Positive(t, report.Grade.TotalQueries)
	assert.Positive(t, report.Throughput())

	// Grades must not have touched entry rows.
	require.NoError(t, VerifyIndexConsistency(ctx, targets, ds))

	var buf bytes.Buffer
	report.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "Search")
	assert.Contains(t, out, "Grade")
	assert.Contains(t, out, "ops/s")
}

func TestRunSearchOnly(t *testing.T) {
	targets := newTargets(t)
	ctx := context.Background()

	ds, err := Seed(ctx, targets.Dictionary, 20, 1)
	require.NoError(t, err)

	report, err := Run(ctx, targets, ds, Workload{Entries: 20, Workers: 4, OpsPerWorker: 5, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 20, report.Search.TotalQueries)
	assert.Zero(t, report.Grade.TotalQueries)
}

func TestRunRejectsBadWorkload(t *testing.T) {
	ds := &Dataset{Words: []string{"كتاب"}, Translations: []string{"book"}, EntryIDs: []string{"a"}}

	tests := []struct {
		name string
		wl   Workload
	}{
		{"no workers", Workload{Entries: 1, OpsPerWorker: 1}},
		{"no ops", Workload{Entries: 1, Workers: 1}},
		{"ratio above one", Workload{Entries: 1, Workers: 1, OpsPerWorker: 1, GradeRatio: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), Targets{}, ds, tt.wl)
			assert.Error(t, err)
		})
	}

	_, err := Run(context.Background(), Targets{}, &Dataset{}, DefaultWorkload())
	assert.ErrorContains(t, err, "dataset is empty")
}

func TestRunCanceled(t *testing.T) {
	targets := newTargets(t)
	ds, err := Seed(context.Background(), targets.Dictionary, 5, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, targets, ds, Workload{Entries: 5, Workers: 2, OpsPerWorker: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeLatencyStats(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := range durations {
		durations[i] = time.Duration(100-i) * time.Millisecond
	}

	stats := computeLatencyStats(durations)
	assert.Equal(t, 100, stats.TotalQueries)
	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
	assert.Equal(t, 51*time.Millisecond, stats.P50)
	assert.Equal(t, 96*time.Millisecond, stats.P95)
	assert.Equal(t, 100*time.Millisecond, stats.P99)
	assert.Equal(t, 50500*time.Microsecond, stats.Mean)

	empty := computeLatencyStats(nil)
	assert.Zero(t, empty.TotalQueries)

	var buf bytes.Buffer
	empty.Print(&buf, "Empty")
	assert.NotContains(t, buf.String(), "P95")
}

package sync

import (
	"context"
	"database/sql"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/store/storetest"
)

type fakeReplica struct {
	pulls, pushes atomic.Int32
	pull          func(ctx context.Context) error
	push          func(ctx context.Context) error
}

func (r *fakeReplica) Pull(ctx context.Context) error {
	r.pulls.Add(1)
	if r.pull != nil {
		return r.pull(ctx)
	}
	return nil
}

func (r *fakeReplica) Push(ctx context.Context) error {
	r.pushes.Add(1)
	if r.push != nil {
		return r.push(ctx)
	}
	return nil
}

func (r *fakeReplica) Close() error { return nil }

type recorder struct {
	mu     gosync.Mutex
	events []notify.Event
	onSend func(notify.Event)
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onSend
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	db      *sql.DB
	replica *fakeReplica
	queue   *queue.Queue
	pub     *recorder
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	local := storetest.Open(t)
	f := &fixture{
		db:      local.RawDB(),
		replica: &fakeReplica{},
		queue:   queue.New(queue.Config{}),
		pub:     &recorder{},
	}
	t.Cleanup(func() { _ = f.queue.Close(context.Background()) })

	f.engine = New(Options{
		DB:        store.NewSQLAdapter(f.db, f.replica),
		Queue:     f.queue,
		Publisher: f.pub,
	})
	return f
}

func insertEntry(ctx context.Context, db *sql.DB, id string, updatedMs int64) error {
	_, err := db.ExecContext(ctx, `INSERT INTO dictionary_entries
		(id, word, translation, type, created_at, created_at_timestamp_ms, updated_at, updated_at_timestamp_ms)
		VALUES (?, ?, '', 'ism', '2024-01-01T00:00:00.000Z', ?, '2024-01-01T00:00:00.000Z', ?)`,
		id, "كلمة", updatedMs, updatedMs)
	return err
}

func TestSyncWithoutChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, insertEntry(ctx, f.db, "a", 1000))

	res, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(1000), res.WatermarkBefore)
	assert.Equal(t, int64(1000), res.WatermarkAfter)
	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, int32(1), f.replica.pulls.Load())
	assert.Equal(t, int32(1), f.replica.pushes.Load())
	assert.Equal(t, []notify.Kind{notify.SyncComplete}, f.pub.kinds())

	st, ok := f.engine.Last()
	require.True(t, ok)
	assert.NoError(t, st.Err)
}

func TestSyncPullChangesDataset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.replica.pull = func(ctx context.Context) error {
		return insertEntry(ctx, f.db, "remote", 5000)
	}

	res, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, int64(0), res.WatermarkBefore)
	assert.Equal(t, int64(5000), res.WatermarkAfter)
	assert.Equal(t, []notify.Kind{notify.DatasetChanged, notify.SyncComplete}, f.pub.kinds())
}

func TestSyncPullFailureAbortsCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("network unreachable")
	f.replica.pull = func(context.Context) error { return boom }

	_, err := f.engine.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), f.replica.pushes.Load(), "push is skipped after a failed pull")
	assert.Equal(t, []notify.Kind{notify.SyncFailed}, f.pub.kinds())

	st, ok := f.engine.Last()
	require.True(t, ok)
	assert.ErrorIs(t, st.Err, boom)

	// The failure released the sync slot; the next call starts a new cycle.
	f.replica.pull = nil
	_, err = f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.replica.pulls.Load())
}

func TestSyncReturnsItsOwnCycleResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, insertEntry(ctx, f.db, "a", 1000))

	// Another cycle finishing right after this one must not leak into the
	// caller's result.
	later := Status{Result: Result{WatermarkBefore: 1000, WatermarkAfter: 9000, Changed: true, Entries: 42}}
	f.pub.onSend = func(ev notify.Event) {
		if ev.Kind == notify.SyncComplete {
			f.engine.last.Store(&later)
		}
	}

	res, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(1000), res.WatermarkAfter)
	assert.Equal(t, 1, res.Entries)

	st, ok := f.engine.Last()
	require.True(t, ok)
	assert.Equal(t, 42, st.Result.Entries)
}

func TestSyncFailureReachesEveryMergedCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := make(chan struct{})
	boom := errors.New("replica rejected push")
	f.replica.pull = func(context.Context) error {
		<-release
		return nil
	}
	f.replica.push = func(context.Context) error { return boom }

	const callers = 3
	var started atomic.Int32
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Add(1)
			_, err := f.engine.Sync(ctx)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return started.Load() == callers && f.replica.pulls.Load() == 1 &&
			f.queue.SyncState() == queue.SyncPending
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		err := <-errs
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, ErrSyncFailed)
	}
	assert.Equal(t, int32(1), f.replica.pushes.Load())
}

func TestSyncWithoutReplica(t *testing.T) {
	q := queue.New(queue.Config{})
	t.Cleanup(func() { _ = q.Close(context.Background()) })
	e := New(Options{DB: storetest.Open(t), Queue: q})

	_, err := e.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, store.ErrNoReplica)

	_, ok := e.Last()
	assert.False(t, ok)
}

func TestConcurrentSyncsMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := make(chan struct{})
	f.replica.pull = func(context.Context) error {
		<-release
		return nil
	}

	const callers = 5
	var (
		wg      gosync.WaitGroup
		started atomic.Int32
		errs    = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Add(1)
			_, err := f.engine.Sync(ctx)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return started.Load() == callers && f.replica.pulls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.replica.pulls.Load())
	assert.Equal(t, int32(1), f.replica.pushes.Load())
}

func TestSyncWaitHonorsContext(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	f.replica.pull = func(context.Context) error {
		<-release
		return nil
	}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.engine.Sync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

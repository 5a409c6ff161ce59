package impex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/store/storetest"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

type mirrorCall struct {
	name string
	size int
}

type recordingMirror struct{ calls []mirrorCall }

func (m *recordingMirror) Import(_ context.Context, name string, data []byte) {
	m.calls = append(m.calls, mirrorCall{name, len(data)})
}

type fixture struct {
	db     *store.SQLAdapter
	dict   *dictionary.Service
	pipe   *Pipeline
	pub    *recorder
	mirror *recordingMirror
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storetest.Open(t)
	q := queue.New(queue.Config{})
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	f := &fixture{
		db:     db,
		pub:    &recorder{},
		mirror: &recordingMirror{},
		now:    time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.dict = dictionary.NewService(dictionary.Options{DB: db, Queue: q, Now: clock})
	f.pipe = New(Options{DB: db, Queue: q, Publisher: f.pub, Mirror: f.mirror, Now: clock})
	return f
}

func (f *fixture) seed(t *testing.T, words ...string) []*schema.Entry {
	t.Helper()
	var out []*schema.Entry
	for _, w := range words {
		e, err := f.dict.CreateEntry(context.Background(), dictionary.EntryInput{
			Word:        w,
			Translation: "t-" + w,
			Type:        schema.WordTypeIsm,
			Root:        []string{"ك", "ت", "ب"},
			Tags:        []string{"seed"},
			Examples:    []schema.Example{{Sentence: w + " جميل", Translation: "nice"}},
		})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func entryJSON(id, word string) string {
	return `{"id":"` + id + `","word":"` + word + `","translation":"x","type":"ism",
		"created_at":"2024-01-01T00:00:00.000Z","created_at_timestamp_ms":1704067200000,
		"updated_at":"2024-01-01T00:00:00.000Z","updated_at_timestamp_ms":1704067200000}`
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "كتاب", "قلم", "مكتبة")

	var buf bytes.Buffer
	rep, err := f.pipe.Export(ctx, &buf, ExportOptions{IncludeFlashcards: true, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Exported)
	assert.Empty(t, rep.Skipped)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, FormatVersion, snap.Version)
	assert.Equal(t, "2024-05-10T08:00:00.000Z", snap.ExportedAt)
	require.Len(t, snap.Entries, 3)
	assert.Len(t, snap.Entries[0].Flashcards, 2)

	cardsBefore := make(map[string][]*schema.Flashcard)
	for _, e := range seeded {
		cards, err := f.dict.Flashcards(ctx, e.ID)
		require.NoError(t, err)
		cardsBefore[e.ID] = cards
	}

	_, err = f.dict.DeleteAll(ctx)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	irep, err := f.pipe.Import(ctx, bytes.NewReader(buf.Bytes()), ImportOptions{BatchSize: 2, SourceName: "backup.json"})
	require.NoError(t, err)
	assert.Equal(t, 3, irep.Imported)
	assert.Equal(t, 2, irep.Batches)

	for _, want := range seeded {
		got, err := f.dict.GetEntry(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		cards, err := f.dict.Flashcards(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, cardsBefore[want.ID], cards)
	}

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, notify.DatasetChanged, f.pub.events[0].Kind)
	assert.Equal(t, 3, f.pub.events[0].Count)
	assert.Equal(t, []mirrorCall{{"backup.json", buf.Len()}}, f.mirror.calls)
}

func TestExportSkipsCorruptRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, "كتاب", "قلم")

	_, err := f.db.ExecContext(ctx, `UPDATE dictionary_entries SET morphology = '{"ism":{"gender":"neuter"}}' WHERE id = ?`, seeded[1].ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	rep, err := f.pipe.Export(ctx, &buf, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Exported)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, seeded[1].ID, rep.Skipped[0].EntryID)
	assert.Equal(t, "قلم", rep.Skipped[0].Word)
	assert.Equal(t, "morphology.ism.gender", rep.Skipped[0].Field)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, 1, snap.Skipped)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, seeded[0].ID, snap.Entries[0].ID)
	assert.Empty(t, snap.Entries[0].Flashcards)
}

func TestExportEmptyDictionary(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	rep, err := f.pipe.Export(context.Background(), &buf, ExportOptions{})
	require.NoError(t, err)
	assert.Zero(t, rep.Exported)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Empty(t, snap.Entries)
}

func TestImportRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		kind   ErrorKind
		fields []string
	}{
		{
			name: "malformed json",
			doc:  `{"version":"v1.0.0","entries":[`,
			kind: KindInvalidJSON,
		},
		{
			name:   "wrong field type",
			doc:    `{"version":1,"entries":[]}`,
			kind:   KindSchemaValidation,
			fields: []string{"version"},
		},
		{
			name:   "missing version",
			doc:    `{"entries":[]}`,
			kind:   KindSchemaValidation,
			fields: []string{"version"},
		},
		{
			name:   "future major version",
			doc:    `{"version":"v2.1.0","entries":[]}`,
			kind:   KindUnsupportedVersion,
			fields: []string{"version"},
		},
		{
			name: "every invalid field is reported",
			doc: `{"version":"1.2.0","entries":[` + entryJSON("a", "كتاب") + `,
				{"id":"b","word":"","translation":"x","type":"noun",
				 "created_at":"2024-01-01T00:00:00.000Z","created_at_timestamp_ms":1,
				 "updated_at":"2024-01-01T00:00:00.000Z","updated_at_timestamp_ms":1},
				` + entryJSON("a", "قلم") + `]}`,
			kind:   KindSchemaValidation,
			fields: []string{
				"entries[1].word", "entries[1].type",
				"entries[1].created_at_timestamp_ms", "entries[1].updated_at_timestamp_ms",
				"entries[2].id",
			},
		},
		{
			name: "timestamp pairs disagree",
			doc: `[{"id":"a","word":"كتاب","translation":"x","type":"ism",
				"created_at":"2020-01-01T00:00:00.000Z","created_at_timestamp_ms":1,
				"updated_at":"2020-01-01T00:00:00.000Z","updated_at_timestamp_ms":1577836800000,
				"flashcards":[{"id":"c1","direction":"forward","state":2,
					"due":"2020-01-05T00:00:00.000Z","due_timestamp_ms":0,
					"last_review":"2020-01-01T00:00:00.000Z","last_review_timestamp_ms":1577836800001}]}]`,
			kind: KindSchemaValidation,
			fields: []string{
				"entries[0].created_at_timestamp_ms",
				"entries[0].flashcards[0].due_timestamp_ms",
				"entries[0].flashcards[0].last_review_timestamp_ms",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.pipe.Import(context.Background(), strings.NewReader(tt.doc), ImportOptions{})
			var ie *ImportError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.kind, ie.Kind)

			var fields []string
			for _, fe := range ie.Errors {
				if fe.Field != "" {
					fields = append(fields, fe.Field)
				}
			}
			assert.Equal(t, tt.fields, fields)

			n, err := f.dict.CountEntries(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Empty(t, f.pub.events)
			assert.Empty(t, f.mirror.calls)
		})
	}
}

func TestImportBareArrayCreatesFlashcards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := `[` + entryJSON("e1", "قلم") + `]`
	rep, err := f.pipe.Import(ctx, strings.NewReader(doc), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, rep.Version)
	assert.Equal(t, 1, rep.Imported)

	cards, err := f.dict.Flashcards(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, schema.StateNew, cards[0].State)
	assert.Equal(t, f.now.UnixMilli(), cards[0].DueMs)
}

func TestImportOverwritesExistingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seed(t, "كتاب")[0]
	before, err := f.dict.Flashcards(ctx, e.ID)
	require.NoError(t, err)

	doc := `[` + entryJSON(e.ID, "كُتُب") + `]`
	_, err = f.pipe.Import(ctx, strings.NewReader(doc), ImportOptions{})
	require.NoError(t, err)

	got, err := f.dict.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "كُتُب", got.Word)
	assert.Empty(t, got.Tags, "upsert replaces the row instead of merging")

	after, err := f.dict.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportRegeneratesIdsAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := `[` + entryJSON("fixed", "قلم") + `]`
	_, err := f.pipe.Import(ctx, strings.NewReader(doc), ImportOptions{RegenerateIDs: true, RegenerateTimestamps: true})
	require.NoError(t, err)

	_, err = f.dict.GetEntry(ctx, "fixed")
	require.ErrorIs(t, err, schema.ErrNotFound)

	entries, err := f.dict.ListEntries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, "fixed", entries[0].ID)
	assert.Equal(t, f.now.UnixMilli(), entries[0].CreatedAtMs)
	assert.Equal(t, f.now.UnixMilli(), entries[0].UpdatedAtMs)
}

const failOnBoom = `CREATE TRIGGER fail_on_boom BEFORE INSERT ON dictionary_entries
	WHEN NEW.word = 'boom' BEGIN SELECT RAISE(ABORT, 'boom rejected'); END`

func TestImportPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.db.ExecContext(ctx, failOnBoom)
	require.NoError(t, err)

	doc := `[` + entryJSON("a", "كتاب") + `,` + entryJSON("b", "قلم") + `,` + entryJSON("c", "boom") + `]`
	rep, err := f.pipe.Import(ctx, strings.NewReader(doc), ImportOptions{BatchSize: 2})

	var pe *PartialImportError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Committed)
	assert.Equal(t, 3, pe.Total)
	assert.Contains(t, pe.Error(), "boom rejected")
	require.NotNil(t, rep)
	assert.Equal(t, 1, rep.Batches)

	n, err := f.dict.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, 2, f.pub.events[0].Count)
	assert.Empty(t, f.mirror.calls)
}

func TestImportAtomicRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.db.ExecContext(ctx, failOnBoom)
	require.NoError(t, err)

	doc := `[` + entryJSON("a", "كتاب") + `,` + entryJSON("b", "قلم") + `,` + entryJSON("c", "boom") + `]`
	_, err = f.pipe.Import(ctx, strings.NewReader(doc), ImportOptions{BatchSize: 2, Atomic: true})
	require.Error(t, err)
	var pe *PartialImportError
	assert.False(t, errors.As(err, &pe))

	n, err := f.dict.CountEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.pub.events)
}

func TestValidateFlashcards(t *testing.T) {
	stamp, ms := schema.Stamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	snap := &Snapshot{Version: FormatVersion, Entries: []SnapshotEntry{{
		Entry: schema.Entry{
			ID: "e1", Word: "قلم", Type: schema.WordTypeIsm,
			CreatedAt: stamp, CreatedAtMs: ms, UpdatedAt: stamp, UpdatedAtMs: ms,
		},
		Flashcards: []*schema.Flashcard{
			{ID: "c1", EntryID: "e1", Direction: schema.DirectionForward, Due: stamp, DueMs: ms},
			{ID: "c2", EntryID: "other", Direction: schema.DirectionForward, Due: stamp, DueMs: ms, State: 9},
		},
	}}}

	err := Validate(snap)
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, schema.ErrValidation)

	var fields []string
	for _, fe := range ie.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{
		"entries[0].flashcards[1].state",
		"entries[0].flashcards[1].dictionary_entry_id",
		"entries[0].flashcards[1].direction",
	}, fields)
}

func snapshotJSON(t *testing.T, entries ...SnapshotEntry) string {
	t.Helper()
	data, err := json.Marshal(Snapshot{Version: FormatVersion, Entries: entries})
	require.NoError(t, err)
	return string(data)
}

func TestImportRejectsCardIdOfAnotherEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha := f.seed(t, "alpha")[0]
	alphaCards, err := f.dict.Flashcards(ctx, alpha.ID)
	require.NoError(t, err)
	require.Len(t, alphaCards, 2)

	other := *alpha
	other.ID, other.Word = "b1", "beta"
	stolen := schema.NewFlashcard("b1", schema.DirectionForward, f.now)
	stolen.ID = alphaCards[0].ID
	stolen.Reps = 7

	_, err = f.pipe.Import(ctx, strings.NewReader(snapshotJSON(t, SnapshotEntry{Entry: other, Flashcards: []*schema.Flashcard{stolen}})), ImportOptions{})
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindSchemaValidation, ie.Kind)
	require.Len(t, ie.Errors, 1)
	assert.Equal(t, "entries[0].flashcards[0].id", ie.Errors[0].Field)
	assert.Contains(t, ie.Errors[0].Message, alpha.ID)

	after, err := f.dict.Flashcards(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, alphaCards, after)

	_, err = f.dict.GetEntry(ctx, "b1")
	require.ErrorIs(t, err, schema.ErrNotFound)
	assert.Empty(t, f.pub.events)
}

func TestImportMergesCardIntoStoredDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seed(t, "كتاب")[0]
	before, err := f.dict.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, before, 2)

	incoming := schema.NewFlashcard(e.ID, schema.DirectionForward, f.now.Add(48*time.Hour))
	incoming.ID = "fresh-id"
	incoming.State = schema.StateReview
	incoming.Reps = 3
	incoming.SetLastReview(f.now)

	_, err = f.pipe.Import(ctx, strings.NewReader(snapshotJSON(t, SnapshotEntry{Entry: *e, Flashcards: []*schema.Flashcard{incoming}})), ImportOptions{})
	require.NoError(t, err)

	after, err := f.dict.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, after, 2, "one card per direction")
	assert.Equal(t, before[0].ID, after[0].ID, "stored card keeps its id")
	assert.Equal(t, schema.DirectionForward, after[0].Direction)
	assert.Equal(t, 3, after[0].Reps)
	assert.Equal(t, schema.StateReview, after[0].State)
	assert.Equal(t, incoming.DueMs, after[0].DueMs)
	assert.Equal(t, before[1], after[1], "reverse card untouched")
}

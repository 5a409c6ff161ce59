package dictionary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/store/storetest"
)

type recordingIndex struct {
	mu       sync.Mutex
	upserted []string
	removed  []string
}

func (r *recordingIndex) Upsert(e *schema.Entry) {
	r.mu.Lock()
	r.upserted = append(r.upserted, e.ID)
	r.mu.Unlock()
}

func (r *recordingIndex) Remove(id string) {
	r.mu.Lock()
	r.removed = append(r.removed, id)
	r.mu.Unlock()
}

type recordingMirror struct{ calls int }

func (m *recordingMirror) DeleteAll(context.Context) { m.calls++ }

type fixture struct {
	db     *store.SQLAdapter
	svc    *Service
	index  *recordingIndex
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
		index:  &recordingIndex{},
		mirror: &recordingMirror{},
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Options{
		DB:     db,
		Queue:  q,
		Index:  f.index,
		Mirror: f.mirror,
		Now:    func() time.Time { return f.now },
	})
	return f
}

func kitabInput() EntryInput {
	return EntryInput{
		Word:        "كِتَاب",
		Translation: "book",
		Type:        schema.WordTypeIsm,
		Root:        []string{"ك", "ت", "ب"},
		Tags:        []string{"noun", "daily"},
		Morphology: &schema.Morphology{Ism: &schema.IsmMorphology{
			Singular: "كِتَاب",
			Plurals:  []schema.Plural{{Word: "كُتُب"}},
			Gender:   schema.GenderMasculine,
		}},
	}
}

func TestCreateEntryCreatesBothFlashcards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", e.CreatedAt)
	assert.Equal(t, f.now.UnixMilli(), e.CreatedAtMs)

	cards, err := f.svc.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, schema.DirectionForward, cards[0].Direction)
	assert.Equal(t, schema.DirectionReverse, cards[1].Direction)
	for _, c := range cards {
		assert.Equal(t, schema.StateNew, c.State)
		assert.Zero(t, c.Reps)
		assert.Zero(t, c.Lapses)
		assert.Equal(t, f.now.UnixMilli(), c.DueMs)
		assert.Nil(t, c.LastReview)
	}

	got, err := f.svc.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, []string{e.ID}, f.index.upserted)
}

func TestOneFlashcardPerDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)
	before, err := f.svc.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, before, 2)

	repo := NewRepository(f.db)
	later := f.now.Add(24 * time.Hour)

	dup := schema.NewFlashcard(e.ID, schema.DirectionForward, later)
	require.Error(t, repo.InsertFlashcard(ctx, dup), "second forward card must violate the unique pair")

	require.NoError(t, repo.EnsureFlashcard(ctx, schema.NewFlashcard(e.ID, schema.DirectionReverse, later)))

	merged := schema.NewFlashcard(e.ID, schema.DirectionForward, later)
	merged.Reps = 2
	require.NoError(t, repo.ReplaceFlashcard(ctx, merged))
	assert.Equal(t, before[0].ID, merged.ID, "upsert adopts the stored id")

	after, err := f.svc.Flashcards(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, 2, after[0].Reps)
	assert.Equal(t, later.UnixMilli(), after[0].DueMs)
	assert.Equal(t, before[1], after[1])
}

func TestReplaceFlashcardLeavesOtherEntriesAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)
	in := kitabInput()
	in.Word = "قَلَم"
	b, err := f.svc.CreateEntry(ctx, in)
	require.NoError(t, err)

	aCards, err := f.svc.Flashcards(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.db.ExecContext(ctx, `DELETE FROM flashcards WHERE dictionary_entry_id = ?`, b.ID)
	require.NoError(t, err)

	c := schema.NewFlashcard(b.ID, schema.DirectionForward, f.now)
	c.ID = aCards[0].ID
	require.Error(t, NewRepository(f.db).ReplaceFlashcard(ctx, c))

	after, err := f.svc.Flashcards(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, aCards, after)
}

func TestCreateEntryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	in := kitabInput()
	in.Type = "noun"
	in.Tags = []string{""}
	_, err := f.svc.CreateEntry(context.Background(), in)

	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.Len(t, ve.Errors, 2)
	assert.Empty(t, f.index.upserted)
}

func TestUpdateEntryAdvancesWatermark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)

	// Same clock reading: updated_at must still move forward.
	in := kitabInput()
	in.Translation = "a book"
	updated, err := f.svc.UpdateEntry(ctx, e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "a book", updated.Translation)
	assert.Greater(t, updated.UpdatedAtMs, e.UpdatedAtMs)
	assert.Equal(t, e.CreatedAtMs, updated.CreatedAtMs)

	wm, err := NewRepository(f.db).MaxUpdatedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAtMs, wm)

	_, err = f.svc.UpdateEntry(ctx, "missing", in)
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestDeleteEntryCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEntry(ctx, e.ID))
	assert.Equal(t, []string{e.ID}, f.index.removed)

	var n int
	require.NoError(t, f.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flashcards WHERE dictionary_entry_id = ?`, e.ID).Scan(&n))
	assert.Zero(t, n)

	_, err = f.svc.GetEntry(ctx, e.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, e.ID), schema.ErrNotFound)
}

func TestDeleteAllMirrorsToRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateEntry(ctx, kitabInput())
		require.NoError(t, err)
	}

	n, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, f.mirror.calls)

	count, err := f.svc.CountEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStreamEntryRowsBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.svc.CreateEntry(ctx, kitabInput())
		require.NoError(t, err)
	}

	var sizes []int
	seen := map[string]bool{}
	err := f.svc.StreamEntryRows(ctx, 3, func(rows []schema.EntryRow) error {
		sizes = append(sizes, len(rows))
		for _, r := range rows {
			seen[r.ID] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, seen, 7)

	assert.Error(t, f.svc.StreamEntryRows(ctx, 0, nil))
}

func TestListEntriesSkipsCorruptRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)
	bad, err := f.svc.CreateEntry(ctx, kitabInput())
	require.NoError(t, err)

	_, err = f.db.ExecContext(ctx, `UPDATE dictionary_entries SET tags = '{not json' WHERE id = ?`, bad.ID)
	require.NoError(t, err)

	entries, err := f.svc.ListEntries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good.ID, entries[0].ID)

	_, err = f.svc.GetEntry(ctx, bad.ID)
	var cf *schema.CorruptFieldError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "tags", cf.Field)
}

func TestDecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.CreateDeck(ctx, "Verbs", schema.DeckFilters{Types: []schema.WordType{schema.WordTypeFiil}})
	require.NoError(t, err)

	_, err = f.svc.CreateDeck(ctx, " ", schema.DeckFilters{})
	assert.ErrorIs(t, err, schema.ErrValidation)

	got, err := f.svc.GetDeck(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	updated, err := f.svc.UpdateDeck(ctx, d.ID, "All verbs", schema.DeckFilters{Tags: []string{"core"}})
	require.NoError(t, err)
	assert.Equal(t, "All verbs", updated.Name)
	assert.Equal(t, []string{"core"}, updated.Filters.Tags)

	decks, err := f.svc.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)

	require.NoError(t, f.svc.DeleteDeck(ctx, d.ID))
	_, err = f.svc.GetDeck(ctx, d.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, s.ShowReverseFlashcards)
	assert.Equal(t, schema.AntonymsHidden, s.ShowAntonymsInFlashcard)

	yes := true
	hint := schema.AntonymsHint
	s, err = f.svc.UpdateSettings(ctx, SettingsPatch{ShowReverseFlashcards: &yes, ShowAntonymsInFlashcard: &hint})
	require.NoError(t, err)
	assert.True(t, s.ShowReverseFlashcards)

	s, err = f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, s.ShowReverseFlashcards)
	assert.Equal(t, schema.AntonymsHint, s.ShowAntonymsInFlashcard)

	bogus := schema.AntonymsMode("sometimes")
	_, err = f.svc.UpdateSettings(ctx, SettingsPatch{ShowAntonymsInFlashcard: &bogus})
	assert.ErrorIs(t, err, schema.ErrValidation)
}

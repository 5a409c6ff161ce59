package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

// Indexer receives single-entry changes right after they commit.
type Indexer interface {
	Upsert(e *schema.Entry)
	Remove(id string)
}

// RemoteMirror mirrors destructive operations to the remote dictionary API.
// Implementations are best-effort and must not block.
type RemoteMirror interface {
	DeleteAll(ctx context.Context)
}

// EntryInput is the user-editable part of an entry.
type EntryInput struct {
	Word        string
	Translation string
	Definition  string
	Type        schema.WordType
	Root        []string
	Tags        []string
	Antonyms    []schema.Antonym
	Examples    []schema.Example
	Morphology  *schema.Morphology
}

func (in EntryInput) apply(e *schema.Entry) {
	e.Word = in.Word
	e.Translation = in.Translation
	e.Definition = in.Definition
	e.Type = in.Type
	e.Root = in.Root
	e.Tags = in.Tags
	e.Antonyms = in.Antonyms
	e.Examples = in.Examples
	e.Morphology = in.Morphology
}

// SettingsPatch changes the fields that are non-nil.
type SettingsPatch struct {
	ShowReverseFlashcards   *bool
	ShowAntonymsInFlashcard *schema.AntonymsMode
}

// Options configures a Service. Only DB and Queue are required.
type Options struct {
	DB        store.Adapter
	Queue     *queue.Queue
	Index     Indexer
	Publisher notify.Publisher
	Mirror    RemoteMirror
	Logger    *zap.Logger
	Now       func() time.Time
}

// Service is the write path for dictionary data. Every store access goes
// through the operation queue.
type Service struct {
	db     store.Adapter
	queue  *queue.Queue
	index  Indexer
	pub    notify.Publisher
	mirror RemoteMirror
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	s := &Service{
		db:     opts.DB,
		queue:  opts.Queue,
		index:  opts.Index,
		pub:    opts.Publisher,
		mirror: opts.Mirror,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if s.index == nil {
		s.index = nopIndexer{}
	}
	if s.pub == nil {
		s.pub = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("dictionary")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateEntry stores a new entry with its forward and reverse flashcards in
// one transaction, then adds it to the search index.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (*schema.Entry, error) {
	now := s.now()
	e := &schema.Entry{ID: uuid.NewString()}
	in.apply(e)
	e.CreatedAt, e.CreatedAtMs = schema.Stamp(now)
	e.UpdatedAt, e.UpdatedAtMs = e.CreatedAt, e.CreatedAtMs

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return queue.Do(ctx, s.queue, "create-entry", func(ctx context.Context) (*schema.Entry, error) {
		err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			repo := NewRepository(tx)
			if err := repo.InsertEntry(ctx, e); err != nil {
				return err
			}
			for _, dir := range []schema.Direction{schema.DirectionForward, schema.DirectionReverse} {
				if err := repo.InsertFlashcard(ctx, schema.NewFlashcard(e.ID, dir, now)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.index.Upsert(e)
		s.pub.Publish(notify.Event{Kind: notify.EntriesChanged, Reason: "create", EntryIDs: []string{e.ID}})
		s.logger.Debug("created entry", zap.String("entry_id", e.ID), zap.String("word", e.Word))
		return e, nil
	})
}

// UpdateEntry replaces the editable fields of an entry.
func (s *Service) UpdateEntry(ctx context.Context, id string, in EntryInput) (*schema.Entry, error) {
	return queue.Do(ctx, s.queue, "update-entry", func(ctx context.Context) (*schema.Entry, error) {
		repo := NewRepository(s.db)
		e, err := repo.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}

		prev := e.UpdatedAtMs
		in.apply(e)
		e.UpdatedAt, e.UpdatedAtMs = schema.Stamp(s.now())
		if e.UpdatedAtMs <= prev {
			// Keep the sync watermark strictly increasing across edits.
			e.UpdatedAt, e.UpdatedAtMs = schema.Stamp(schema.FromMillis(prev + 1))
		}

		if err := e.Validate(); err != nil {
			return nil, err
		}
		if err := repo.UpdateEntry(ctx, e); err != nil {
			return nil, err
		}

		s.index.Upsert(e)
		s.pub.Publish(notify.Event{Kind: notify.EntriesChanged, Reason: "update", EntryIDs: []string{e.ID}})
		return e, nil
	})
}

// DeleteEntry removes an entry and its flashcards.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	return queue.Exec(ctx, s.queue, "delete-entry", func(ctx context.Context) error {
		if err := NewRepository(s.db).DeleteEntry(ctx, id); err != nil {
			return err
		}
		s.index.Remove(id)
		s.pub.Publish(notify.Event{Kind: notify.EntriesChanged, Reason: "delete", EntryIDs: []string{id}})
		return nil
	})
}

// DeleteAll removes every entry locally and asks the remote to do the same.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := queue.Do(ctx, s.queue, "delete-all", func(ctx context.Context) (int64, error) {
		return NewRepository(s.db).DeleteAllEntries(ctx)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("deleted all entries", zap.Int64("count", n))
	s.pub.Publish(notify.Event{Kind: notify.DatasetChanged, Reason: "delete_all", Count: int(n)})
	if s.mirror != nil {
		s.mirror.DeleteAll(ctx)
	}
	return n, nil
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, id string) (*schema.Entry, error) {
	return queue.Do(ctx, s.queue, "get-entry", func(ctx context.Context) (*schema.Entry, error) {
		return NewRepository(s.db).GetEntry(ctx, id)
	})
}

// ListEntries returns a page of entries, newest edits first. Corrupt rows are
// logged and left out.
func (s *Service) ListEntries(ctx context.Context, limit, offset int) ([]*schema.Entry, error) {
	return queue.Do(ctx, s.queue, "list-entries", func(ctx context.Context) ([]*schema.Entry, error) {
		entries, skipped, err := NewRepository(s.db).ListEntries(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		for _, cf := range skipped {
			s.logger.Warn("skipping corrupt entry",
				zap.String("entry_id", cf.EntryID), zap.String("field", cf.Field), zap.String("reason", cf.Reason))
		}
		return entries, nil
	})
}

// CountEntries returns the number of stored entries.
func (s *Service) CountEntries(ctx context.Context) (int, error) {
	return queue.Do(ctx, s.queue, "count-entries", func(ctx context.Context) (int, error) {
		return NewRepository(s.db).CountEntries(ctx)
	})
}

// Flashcards returns the cards of one entry.
func (s *Service) Flashcards(ctx context.Context, entryID string) ([]*schema.Flashcard, error) {
	return queue.Do(ctx, s.queue, "entry-flashcards", func(ctx context.Context) ([]*schema.Flashcard, error) {
		return NewRepository(s.db).FlashcardsForEntry(ctx, entryID)
	})
}

// StreamEntryRows reads the whole dictionary in id order, batchSize rows at a
// time. Each batch read is its own queue operation so other work can
// interleave; fn runs outside the queue.
func (s *Service) StreamEntryRows(ctx context.Context, batchSize int, fn func([]schema.EntryRow) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive (got %d)", batchSize)
	}

	after := ""
	for {
		batch, err := queue.Do(ctx, s.queue, "read-entry-batch", func(ctx context.Context) ([]schema.EntryRow, error) {
			return NewRepository(s.db).EntryRowsAfter(ctx, after, batchSize)
		})
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

// CreateDeck stores a new deck.
func (s *Service) CreateDeck(ctx context.Context, name string, filters schema.DeckFilters) (*schema.Deck, error) {
	now := s.now().UnixMilli()
	d := &schema.Deck{ID: uuid.NewString(), Name: name, Filters: filters, CreatedAtMs: now, UpdatedAtMs: now}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	err := queue.Exec(ctx, s.queue, "create-deck", func(ctx context.Context) error {
		return NewRepository(s.db).InsertDeck(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDeck renames a deck and replaces its filters.
func (s *Service) UpdateDeck(ctx context.Context, id, name string, filters schema.DeckFilters) (*schema.Deck, error) {
	return queue.Do(ctx, s.queue, "update-deck", func(ctx context.Context) (*schema.Deck, error) {
		repo := NewRepository(s.db)
		d, err := repo.GetDeck(ctx, id)
		if err != nil {
			return nil, err
		}
		d.Name = name
		d.Filters = filters
		d.UpdatedAtMs = s.now().UnixMilli()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if err := repo.UpdateDeck(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	})
}

// DeleteDeck removes a deck. Its cards are unaffected.
func (s *Service) DeleteDeck(ctx context.Context, id string) error {
	return queue.Exec(ctx, s.queue, "delete-deck", func(ctx context.Context) error {
		return NewRepository(s.db).DeleteDeck(ctx, id)
	})
}

// GetDeck loads one deck.
func (s *Service) GetDeck(ctx context.Context, id string) (*schema.Deck, error) {
	return queue.Do(ctx, s.queue, "get-deck", func(ctx context.Context) (*schema.Deck, error) {
		return NewRepository(s.db).GetDeck(ctx, id)
	})
}

// ListDecks returns every deck.
func (s *Service) ListDecks(ctx context.Context) ([]*schema.Deck, error) {
	return queue.Do(ctx, s.queue, "list-decks", func(ctx context.Context) ([]*schema.Deck, error) {
		return NewRepository(s.db).ListDecks(ctx)
	})
}

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (schema.Settings, error) {
	return queue.Do(ctx, s.queue, "get-settings", func(ctx context.Context) (schema.Settings, error) {
		return NewRepository(s.db).GetSettings(ctx)
	})
}

// UpdateSettings applies patch and returns the stored result.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (schema.Settings, error) {
	return queue.Do(ctx, s.queue, "update-settings", func(ctx context.Context) (schema.Settings, error) {
		repo := NewRepository(s.db)
		cur, err := repo.GetSettings(ctx)
		if err != nil {
			return schema.Settings{}, err
		}
		if patch.ShowReverseFlashcards != nil {
			cur.ShowReverseFlashcards = *patch.ShowReverseFlashcards
		}
		if patch.ShowAntonymsInFlashcard != nil {
			cur.ShowAntonymsInFlashcard = *patch.ShowAntonymsInFlashcard
		}
		cur.UpdatedAtMs = s.now().UnixMilli()
		if err := cur.Validate(); err != nil {
			return schema.Settings{}, err
		}
		if err := repo.SaveSettings(ctx, cur); err != nil {
			return schema.Settings{}, err
		}
		return cur, nil
	})
}

type nopIndexer struct{}

func (nopIndexer) Upsert(*schema.Entry) {}
func (nopIndexer) Remove(string)        {}

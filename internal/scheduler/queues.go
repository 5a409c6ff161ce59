package scheduler

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// QueueOptions scope a queue query. A zero Now means the current time; an
// empty DeckID means every card; Limit <= 0 means no limit.
type QueueOptions struct {
	Now    time.Time
	DeckID string
	Limit  int
}

// ReviewItem is a due card with the entry it belongs to.
type ReviewItem struct {
	Card  *schema.Flashcard
	Entry *schema.Entry
}

// Counts splits the due cards into regular and backlog.
type Counts struct {
	Regular int `json:"regular"`
	Backlog int `json:"backlog"`
}

// Total is every due card.
func (c Counts) Total() int { return c.Regular + c.Backlog }

// Today returns visible cards due at or before now, oldest first.
func (s *Service) Today(ctx context.Context, opts QueueOptions) ([]ReviewItem, error) {
	return s.items(ctx, "today-queue", opts, false)
}

// Backlog returns today's cards that have been due for longer than the
// backlog threshold.
func (s *Service) Backlog(ctx context.Context, opts QueueOptions) ([]ReviewItem, error) {
	return s.items(ctx, "backlog-queue", opts, true)
}

// Counts returns the regular and backlog queue sizes.
func (s *Service) Counts(ctx context.Context, opts QueueOptions) (Counts, error) {
	now := s.at(opts.Now)
	return queue.Do(ctx, s.queue, "queue-counts", func(ctx context.Context) (Counts, error) {
		base, err := s.dueQuery(ctx, sq.Select("COUNT(*)"), opts.DeckID, now)
		if err != nil {
			return Counts{}, err
		}

		today, err := s.count(ctx, base)
		if err != nil {
			return Counts{}, err
		}
		backlog, err := s.count(ctx, s.backlogOnly(base, now))
		if err != nil {
			return Counts{}, err
		}
		return Counts{Regular: today - backlog, Backlog: backlog}, nil
	})
}

func (s *Service) items(ctx context.Context, name string, opts QueueOptions, backlog bool) ([]ReviewItem, error) {
	now := s.at(opts.Now)
	return queue.Do(ctx, s.queue, name, func(ctx context.Context) ([]ReviewItem, error) {
		q, err := s.dueQuery(ctx, sq.Select(dictionary.FlashcardColumnList("f")...), opts.DeckID, now)
		if err != nil {
			return nil, err
		}
		if backlog {
			q = s.backlogOnly(q, now)
		}
		q = q.OrderBy("f.due_timestamp_ms ASC", "f.id ASC")
		if opts.Limit > 0 {
			q = q.Limit(uint64(opts.Limit))
		}

		query, args, err := q.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build queue query: %w", err)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", name, err)
		}
		cards, err := dictionary.CollectFlashcards(rows)
		if err != nil {
			return nil, err
		}
		return s.attachEntries(ctx, cards)
	})
}

// dueQuery adds the joins and filters shared by every queue: visible, due,
// forward-only unless reverse cards are enabled, and the deck's filters.
func (s *Service) dueQuery(ctx context.Context, q sq.SelectBuilder, deckID string, now time.Time) (sq.SelectBuilder, error) {
	repo := dictionary.NewRepository(s.db)
	settings, err := repo.GetSettings(ctx)
	if err != nil {
		return q, err
	}

	q = q.From("flashcards f").
		Join("dictionary_entries e ON e.id = f.dictionary_entry_id").
		Where(sq.Eq{"f.is_hidden": 0}).
		Where(sq.LtOrEq{"f.due_timestamp_ms": now.UnixMilli()})
	if !settings.ShowReverseFlashcards {
		q = q.Where(sq.Eq{"f.direction": string(schema.DirectionForward)})
	}

	if deckID == "" {
		return q, nil
	}
	deck, err := repo.GetDeck(ctx, deckID)
	if err != nil {
		return q, err
	}
	return applyDeckFilters(q, deck.Filters), nil
}

func (s *Service) backlogOnly(q sq.SelectBuilder, now time.Time) sq.SelectBuilder {
	return q.Where(sq.Lt{"f.due_timestamp_ms": now.Add(-s.threshold).UnixMilli()})
}

func applyDeckFilters(q sq.SelectBuilder, f schema.DeckFilters) sq.SelectBuilder {
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q = q.Where(sq.Eq{"e.type": types})
	}
	if len(f.States) > 0 {
		states := make([]int, len(f.States))
		for i, st := range f.States {
			states[i] = int(st)
		}
		q = q.Where(sq.Eq{"f.state": states})
	}
	if len(f.Tags) > 0 {
		tags := make([]any, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = t
		}
		q = q.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM json_each(e.tags) WHERE json_each.value IN ("+sq.Placeholders(len(tags))+"))",
			tags...))
	}
	return q
}

func (s *Service) count(ctx context.Context, q sq.SelectBuilder) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return n, nil
}

// attachEntries loads the entries of cards. Cards whose entry is corrupt are
// dropped with a warning.
func (s *Service) attachEntries(ctx context.Context, cards []*schema.Flashcard) ([]ReviewItem, error) {
	ids := make([]string, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if !seen[c.EntryID] {
			seen[c.EntryID] = true
			ids = append(ids, c.EntryID)
		}
	}

	entries, skipped, err := dictionary.NewRepository(s.db).EntriesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, cf := range skipped {
		s.logger.Warn("skipping card of corrupt entry", zap.String("entry_id", cf.EntryID), zap.Error(cf))
	}

	items := make([]ReviewItem, 0, len(cards))
	for _, c := range cards {
		if e, ok := entries[c.EntryID]; ok {
			items = append(items, ReviewItem{Card: c, Entry: e})
		}
	}
	return items, nil
}

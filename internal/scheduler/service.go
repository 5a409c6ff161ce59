// Package scheduler applies FSRS to stored flashcards and derives the review
// queues (today, backlog and per-deck) from the flashcards table.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/scheduler/fsrs"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

// DefaultBacklogThreshold is how overdue a card must be to count as backlog.
const DefaultBacklogThreshold = 30 * 24 * time.Hour

// Options configures a Service. DB and Queue are required.
type Options struct {
	DB               store.Adapter
	Queue            *queue.Queue
	Params           fsrs.Parameters
	BacklogThreshold time.Duration
	Publisher        notify.Publisher
	Logger           *zap.Logger
	Now              func() time.Time
}

// Service grades and resets flashcards and answers queue queries.
type Service struct {
	db        store.Adapter
	queue     *queue.Queue
	fsrs      *fsrs.Scheduler
	threshold time.Duration
	pub       notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service. A zero Params uses fsrs.DefaultParameters.
func NewService(opts Options) (*Service, error) {
	params := opts.Params
	if params.DesiredRetention == 0 {
		params = fsrs.DefaultParameters()
	}
	sched, err := fsrs.NewScheduler(params)
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:        opts.DB,
		queue:     opts.Queue,
		fsrs:      sched,
		threshold: opts.BacklogThreshold,
		pub:       opts.Publisher,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.threshold <= 0 {
		s.threshold = DefaultBacklogThreshold
	}
	if s.pub == nil {
		s.pub = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("scheduler")
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Threshold returns the backlog threshold.
func (s *Service) Threshold() time.Duration { return s.threshold }

// Preview is the outcome of each grade for one card. Nothing is stored.
type Preview struct {
	Card     *schema.Flashcard
	Outcomes map[fsrs.Rating]*schema.Flashcard
}

// Preview computes the four candidate next states of a card. A zero now
// means the current time.
func (s *Service) Preview(ctx context.Context, cardID string, now time.Time) (*Preview, error) {
	now = s.at(now)
	card, err := queue.Do(ctx, s.queue, "get-flashcard", func(ctx context.Context) (*schema.Flashcard, error) {
		return dictionary.NewRepository(s.db).GetFlashcard(ctx, cardID)
	})
	if err != nil {
		return nil, err
	}

	p := &Preview{Card: card, Outcomes: make(map[fsrs.Rating]*schema.Flashcard, len(fsrs.Ratings))}
	for r, info := range s.fsrs.Repeat(toFSRS(card), now) {
		p.Outcomes[r] = applyFSRS(card, info.Card)
	}
	return p, nil
}

// Grade commits the outcome of rating to the card and returns the stored card.
func (s *Service) Grade(ctx context.Context, cardID string, rating fsrs.Rating, now time.Time) (*schema.Flashcard, error) {
	if !rating.IsValid() {
		return nil, schema.NewValidationError("rating", fmt.Sprintf("must be between 1 and 4 (got %d)", rating))
	}
	now = s.at(now)

	card, err := queue.Do(ctx, s.queue, "grade-flashcard", func(ctx context.Context) (*schema.Flashcard, error) {
		repo := dictionary.NewRepository(s.db)
		card, err := repo.GetFlashcard(ctx, cardID)
		if err != nil {
			return nil, err
		}
		next := applyFSRS(card, s.fsrs.Next(toFSRS(card), now, rating).Card)
		if err := repo.UpdateFlashcard(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("graded flashcard",
		zap.String("card_id", card.ID), zap.Stringer("rating", rating),
		zap.Stringer("state", card.State), zap.String("due", card.Due))
	return card, nil
}

// Reset returns a card to the new-card defaults. The entry is untouched.
func (s *Service) Reset(ctx context.Context, cardID string) (*schema.Flashcard, error) {
	now := s.now()
	return queue.Do(ctx, s.queue, "reset-flashcard", func(ctx context.Context) (*schema.Flashcard, error) {
		repo := dictionary.NewRepository(s.db)
		card, err := repo.GetFlashcard(ctx, cardID)
		if err != nil {
			return nil, err
		}
		card.ResetAt(now)
		if err := repo.UpdateFlashcard(ctx, card); err != nil {
			return nil, err
		}
		return card, nil
	})
}

// ResetEntry resets both cards of an entry in one transaction.
func (s *Service) ResetEntry(ctx context.Context, entryID string) ([]*schema.Flashcard, error) {
	now := s.now()
	return queue.Do(ctx, s.queue, "reset-entry", func(ctx context.Context) ([]*schema.Flashcard, error) {
		var cards []*schema.Flashcard
		err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			repo := dictionary.NewRepository(tx)
			var err error
			cards, err = repo.FlashcardsForEntry(ctx, entryID)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				return fmt.Errorf("flashcards of entry %s: %w", entryID, schema.ErrNotFound)
			}
			for _, c := range cards {
				c.ResetAt(now)
				if err := repo.UpdateFlashcard(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return cards, nil
	})
}

// SetHidden hides a card from every queue, or shows it again.
func (s *Service) SetHidden(ctx context.Context, cardID string, hidden bool) error {
	return queue.Exec(ctx, s.queue, "hide-flashcard", func(ctx context.Context) error {
		repo := dictionary.NewRepository(s.db)
		card, err := repo.GetFlashcard(ctx, cardID)
		if err != nil {
			return err
		}
		card.IsHidden = hidden
		return repo.UpdateFlashcard(ctx, card)
	})
}

func (s *Service) at(now time.Time) time.Time {
	if now.IsZero() {
		return s.now()
	}
	return now
}

func toFSRS(c *schema.Flashcard) fsrs.Card {
	out := fsrs.Card{
		State:         c.State,
		Step:          c.LearningStep,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		Due:           c.DueTime(),
	}
	if t, ok := c.LastReviewTime(); ok {
		out.LastReview = &t
	}
	return out
}

// applyFSRS returns a copy of c carrying the scheduling state of next.
func applyFSRS(c *schema.Flashcard, next fsrs.Card) *schema.Flashcard {
	out := *c
	out.State = next.State
	out.LearningStep = next.Step
	out.Stability = next.Stability
	out.Difficulty = next.Difficulty
	out.ElapsedDays = next.ElapsedDays
	out.ScheduledDays = next.ScheduledDays
	out.Reps = next.Reps
	out.Lapses = next.Lapses
	out.SetDue(next.Due)
	if next.LastReview != nil {
		out.SetLastReview(*next.LastReview)
	}
	return &out
}

package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/scheduler/fsrs"
	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// Progress is a snapshot of a backlog clear.
type Progress struct {
	Cleared int `json:"cleared"`
	Total   int `json:"total"`
}

// BacklogIterator grades every backlog card as Hard, one card per Next.
//
//	it := svc.ClearBacklog(opts)
//	for it.Next(ctx) {
//		render(it.Progress())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Cleared cards leave the backlog, so running a fresh iterator after a
// failure only touches the cards that are still overdue.
type BacklogIterator struct {
	svc  *Service
	opts QueueOptions

	loaded  bool
	done    bool
	pending []string
	prog    Progress
	err     error
}

// ClearBacklog returns an iterator over the current backlog. Nothing is read
// until the first call to Next.
func (s *Service) ClearBacklog(opts QueueOptions) *BacklogIterator {
	opts.Now = s.at(opts.Now)
	opts.Limit = 0
	return &BacklogIterator{svc: s, opts: opts}
}

// Next grades the next card and reports whether it did.
func (it *BacklogIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.loaded {
		items, err := it.svc.Backlog(ctx, it.opts)
		if err != nil {
			it.err = err
			return false
		}
		for _, item := range items {
			it.pending = append(it.pending, item.Card.ID)
		}
		it.prog.Total = len(it.pending)
		it.loaded = true
	}

	for len(it.pending) > 0 {
		id := it.pending[0]
		it.pending = it.pending[1:]

		_, err := it.svc.Grade(ctx, id, fsrs.Hard, it.opts.Now)
		if errors.Is(err, schema.ErrNotFound) {
			// Deleted since the backlog was read.
			it.prog.Total--
			continue
		}
		if err != nil {
			it.err = err
			return false
		}
		it.prog.Cleared++
		return true
	}

	if !it.done && it.prog.Total > 0 {
		it.svc.logger.Info("backlog cleared",
			zap.Int("cleared", it.prog.Cleared), zap.Duration("threshold", it.svc.threshold),
			zap.Time("now", it.opts.Now.Truncate(time.Second)))
	}
	it.done = true
	return false
}

// Progress returns the current snapshot.
func (it *BacklogIterator) Progress() Progress { return it.prog }

// Err returns the error that stopped the iterator, if any.
func (it *BacklogIterator) Err() error { return it.err }

// Package search is the in-memory full-text index over the dictionary.
//
// The live Index is held behind an atomic pointer. A rehydration builds a
// fresh Index from the store and swaps it in; single-entry writes are applied
// to the live Index in place right after they commit. Writes that land while
// a rehydration is running are replayed onto the new Index before the swap.
package search

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// Tolerance maps query length to the allowed edit distance.
type Tolerance struct {
	// ShortMax is the longest query that must match exactly.
	ShortMax int
	// MediumMax is the longest query allowed one edit. Longer queries get two.
	MediumMax int
}

// DefaultTolerance is used on mobile and web.
var DefaultTolerance = Tolerance{ShortMax: 2, MediumMax: 4}

// DesktopTolerance tightens the one-edit band.
var DesktopTolerance = Tolerance{ShortMax: 2, MediumMax: 3}

// For returns the edit distance allowed for a query of n runes.
func (t Tolerance) For(n int) int {
	switch {
	case n <= t.ShortMax:
		return 0
	case n <= t.MediumMax:
		return 1
	default:
		return 2
	}
}

// DefaultBatchSize is the number of rows read per rehydration batch.
const DefaultBatchSize = 500

const defaultLimit = 20

// Config configures an Engine.
type Config struct {
	Boosts    Boosts
	Tolerance Tolerance
	BatchSize int
	Logger    *zap.Logger
}

// RowSource streams every stored entry row in batches.
type RowSource interface {
	StreamEntryRows(ctx context.Context, batchSize int, fn func([]schema.EntryRow) error) error
}

// Query is a search request.
type Query struct {
	Term    string
	Limit   int
	Offset  int
	Filters Filters
}

// Result is one page of hits.
type Result struct {
	Hits      []Hit
	Count     int
	Language  Language
	Tolerance int
	Elapsed   time.Duration
}

// RehydrateStats summarizes a rebuild.
type RehydrateStats struct {
	Indexed  int
	Skipped  int
	Batches  int
	Replayed int
	Elapsed  time.Duration
}

type mutation struct {
	upsert *schema.Entry
	remove string
}

func (m mutation) apply(idx *Index) {
	if m.upsert != nil {
		idx.Upsert(m.upsert)
		return
	}
	idx.Remove(m.remove)
}

// Engine owns the live index.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	cur atomic.Pointer[Index]

	mu         sync.Mutex
	rebuilding bool
	pending    []mutation

	rehydrateMu sync.Mutex
}

// NewEngine creates an engine with an empty index.
func NewEngine(cfg Config) *Engine {
	if cfg.Boosts == (Boosts{}) {
		cfg.Boosts = DefaultBoosts()
	}
	if cfg.Tolerance == (Tolerance{}) {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Engine{cfg: cfg, logger: cfg.Logger.Named("search")}
	e.cur.Store(NewIndex(cfg.Boosts))
	return e
}

// Len returns the number of indexed entries.
func (e *Engine) Len() int {
	return e.cur.Load().Len()
}

// Upsert indexes one entry in the live index.
func (e *Engine) Upsert(entry *schema.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cur.Load().Upsert(entry)
	if e.rebuilding {
		e.pending = append(e.pending, mutation{upsert: entry})
	}
}

// Remove drops one entry from the live index.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cur.Load().Remove(id)
	if e.rebuilding {
		e.pending = append(e.pending, mutation{remove: id})
	}
}

// Rehydrate rebuilds the index from src and swaps it in. On failure the
// previous index stays live.
func (e *Engine) Rehydrate(ctx context.Context, src RowSource) (RehydrateStats, error) {
	e.rehydrateMu.Lock()
	defer e.rehydrateMu.Unlock()

	start := time.Now()
	var stats RehydrateStats

	e.mu.Lock()
	e.rebuilding = true
	e.pending = nil
	e.mu.Unlock()

	swapped := false
	defer func() {
		if !swapped {
			e.mu.Lock()
			e.rebuilding = false
			e.pending = nil
			e.mu.Unlock()
		}
	}()

	next := NewIndex(e.cfg.Boosts)
	batches := make(chan []schema.EntryRow, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		return src.StreamEntryRows(gctx, e.cfg.BatchSize, func(rows []schema.EntryRow) error {
			select {
			case batches <- rows:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		for rows := range batches {
			stats.Batches++
			for i := range rows {
				entry, err := rows[i].Decode()
				if err != nil {
					stats.Skipped++
					e.logger.Warn("skipping corrupt entry during rehydration",
						zap.String("entry_id", rows[i].ID), zap.Error(err))
					continue
				}
				next.Upsert(entry)
				stats.Indexed++
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		e.logger.Error("rehydration failed", zap.Error(err))
		return stats, err
	}

	e.mu.Lock()
	for _, m := range e.pending {
		m.apply(next)
	}
	stats.Replayed = len(e.pending)
	e.cur.Store(next)
	e.rebuilding = false
	e.pending = nil
	swapped = true
	e.mu.Unlock()

	stats.Elapsed = time.Since(start)
	e.logger.Info("search index rehydrated",
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped),
		zap.Int("replayed", stats.Replayed), zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

// Search runs the two-pass query: an exact pass limited to offset+limit,
// then a typo-tolerant pass. Exact hits come first, fuzzy hits follow with
// duplicates removed. Count is the larger of the two pass counts.
// An empty term returns an unranked page of every entry.
func (e *Engine) Search(ctx context.Context, q Query) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	idx := e.cur.Load()
	term := strings.TrimSpace(q.Term)

	if term == "" {
		all := idx.all(q.Filters)
		return Result{
			Hits:     paginate(all, offset, limit),
			Count:    len(all),
			Language: LanguageUnknown,
			Elapsed:  time.Since(start),
		}, nil
	}

	lang := DetectLanguage(term)
	tokens := Tokenize(term, lang)
	if len(tokens) == 0 {
		return Result{Language: lang, Elapsed: time.Since(start)}, nil
	}
	tol := e.cfg.Tolerance.For(utf8.RuneCountInString(strings.Join(tokens, "")))

	exact := idx.query(tokens, matchExact, 0, q.Filters)
	exactCount := len(exact)
	if len(exact) > offset+limit {
		exact = exact[:offset+limit]
	}

	fuzzy := idx.query(tokens, matchFuzzy, tol, q.Filters)

	seen := make(map[string]bool, len(exact))
	merged := make([]Hit, 0, len(exact)+len(fuzzy))
	for _, h := range exact {
		seen[h.Entry.ID] = true
		merged = append(merged, h)
	}
	for _, h := range fuzzy {
		if !seen[h.Entry.ID] {
			seen[h.Entry.ID] = true
			merged = append(merged, h)
		}
	}

	return Result{
		Hits:      paginate(merged, offset, limit),
		Count:     max(exactCount, len(fuzzy)),
		Language:  lang,
		Tolerance: tol,
		Elapsed:   time.Since(start),
	}, nil
}

func paginate(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	end := min(offset+limit, len(hits))
	return hits[offset:end]
}

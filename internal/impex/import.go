package impex

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/notify"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

// ImportOptions controls Import.
type ImportOptions struct {
	// BatchSize is the number of entries written per transaction.
	BatchSize int
	// RegenerateIDs gives every entry and flashcard a fresh id.
	RegenerateIDs bool
	// RegenerateTimestamps stamps every entry as created and updated now.
	RegenerateTimestamps bool
	// Atomic writes everything in one transaction instead of per batch.
	Atomic bool
	// SourceName is passed to the remote mirror as the upload filename.
	SourceName string
}

// ImportReport summarizes a successful import.
type ImportReport struct {
	Version  string
	Imported int
	Batches  int
	Elapsed  time.Duration
}

// Import reads a snapshot from r, validates every entry, then upserts them.
// A rejected snapshot returns *ImportError and writes nothing. A store error
// after some batches committed returns *PartialImportError.
func (p *Pipeline) Import(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportReport, error) {
	start := p.now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultImportBatchSize
	}
	if opts.SourceName == "" {
		opts.SourceName = "dictionary.json"
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.prepare(snap, opts)
	if err := Validate(snap); err != nil {
		return nil, err
	}
	if err := p.checkCardOwners(ctx, snap); err != nil {
		return nil, err
	}

	report := &ImportReport{Version: snap.Version}
	committed, batches, err := p.apply(ctx, snap.Entries, opts)
	report.Imported, report.Batches = committed, batches

	if committed > 0 {
		p.pub.Publish(notify.Event{Kind: notify.DatasetChanged, Reason: "import", Count: committed})
	}
	if err != nil {
		p.logger.Error("import failed", zap.Int("committed", committed), zap.Int("total", len(snap.Entries)), zap.Error(err))
		if committed > 0 {
			return report, &PartialImportError{Committed: committed, Total: len(snap.Entries), Err: err}
		}
		return nil, fmt.Errorf("failed to import: %w", err)
	}

	if p.mirror != nil {
		p.mirror.Import(ctx, opts.SourceName, data)
	}

	report.Elapsed = p.now().Sub(start)
	p.logger.Info("import complete",
		zap.String("version", snap.Version), zap.Int("imported", committed),
		zap.Int("batches", batches), zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// prepare applies id and timestamp regeneration and links flashcards to
// their entry.
func (p *Pipeline) prepare(snap *Snapshot, opts ImportOptions) {
	nowStr, nowMs := schema.Stamp(p.now())
	for i := range snap.Entries {
		se := &snap.Entries[i]
		if opts.RegenerateIDs {
			se.ID = uuid.NewString()
			for _, c := range se.Flashcards {
				if c != nil {
					c.ID = uuid.NewString()
				}
			}
		}
		if opts.RegenerateTimestamps {
			se.CreatedAt, se.CreatedAtMs = nowStr, nowMs
			se.UpdatedAt, se.UpdatedAtMs = nowStr, nowMs
		}
		for _, c := range se.Flashcards {
			if c != nil && (c.EntryID == "" || opts.RegenerateIDs) {
				c.EntryID = se.ID
			}
		}
	}
}

// Validate checks every entry and flashcard of snap with the same rules as
// the live write path. It returns an *ImportError listing all problems.
func Validate(snap *Snapshot) error {
	var errs []schema.FieldError
	collect := func(err error) {
		if ve, ok := err.(*schema.ValidationError); ok {
			errs = append(errs, ve.Errors...)
		}
	}

	seen := make(map[string]int, len(snap.Entries))
	for i := range snap.Entries {
		se := &snap.Entries[i]
		prefix := fmt.Sprintf("entries[%d]", i)
		collect(se.Entry.ValidateAt(prefix))

		if j, dup := seen[se.ID]; dup && se.ID != "" {
			errs = append(errs, schema.FieldError{Field: prefix + ".id", Message: fmt.Sprintf("duplicates entries[%d]", j)})
		} else {
			seen[se.ID] = i
		}

		dirs := make(map[schema.Direction]bool, 2)
		for j, c := range se.Flashcards {
			cprefix := fmt.Sprintf("%s.flashcards[%d]", prefix, j)
			if c == nil {
				errs = append(errs, schema.FieldError{Field: cprefix, Message: "must not be null"})
				continue
			}
			collect(c.ValidateAt(cprefix))
			if c.EntryID != se.ID {
				errs = append(errs, schema.FieldError{Field: cprefix + ".dictionary_entry_id", Message: "does not match the entry id"})
			}
			if dirs[c.Direction] {
				errs = append(errs, schema.FieldError{Field: cprefix + ".direction", Message: fmt.Sprintf("%s card appears twice", c.Direction)})
			}
			dirs[c.Direction] = true
		}
	}

	if len(errs) > 0 {
		return &ImportError{Kind: KindSchemaValidation, Errors: errs}
	}
	return nil
}

// ownerLookupChunk bounds the ids bound into one owner query.
const ownerLookupChunk = 500

// checkCardOwners rejects flashcard ids that already belong to a different
// entry, so an import never rewrites another entry's card.
func (p *Pipeline) checkCardOwners(ctx context.Context, snap *Snapshot) error {
	type ref struct {
		field   string
		entryID string
	}
	refs := make(map[string]ref)
	var ids []string
	for i := range snap.Entries {
		for j, c := range snap.Entries[i].Flashcards {
			refs[c.ID] = ref{fmt.Sprintf("entries[%d].flashcards[%d].id", i, j), c.EntryID}
			ids = append(ids, c.ID)
		}
	}

	repo := dictionary.NewRepository(p.db)
	var errs []schema.FieldError
	for start := 0; start < len(ids); start += ownerLookupChunk {
		chunk := ids[start:min(start+ownerLookupChunk, len(ids))]
		owners, err := repo.FlashcardOwners(ctx, chunk)
		if err != nil {
			return err
		}
		for _, id := range chunk {
			owner, ok := owners[id]
			if r := refs[id]; ok && owner != r.entryID {
				errs = append(errs, schema.FieldError{Field: r.field, Message: fmt.Sprintf("belongs to a flashcard of entry %s", owner)})
			}
		}
	}

	if len(errs) > 0 {
		return &ImportError{Kind: KindSchemaValidation, Errors: errs}
	}
	return nil
}

// apply writes entries in batches and returns how many were committed.
func (p *Pipeline) apply(ctx context.Context, entries []SnapshotEntry, opts ImportOptions) (int, int, error) {
	if opts.Atomic {
		err := queue.Exec(ctx, p.queue, "import-atomic", func(ctx context.Context) error {
			return store.WithTx(ctx, p.db, func(tx *sql.Tx) error {
				return p.writeBatch(ctx, tx, entries)
			})
		})
		if err != nil {
			return 0, 0, err
		}
		return len(entries), 1, nil
	}

	committed, batches := 0, 0
	for start := 0; start < len(entries); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(entries))
		batch := entries[start:end]

		err := queue.Exec(ctx, p.queue, "import-batch", func(ctx context.Context) error {
			return store.WithTx(ctx, p.db, func(tx *sql.Tx) error {
				return p.writeBatch(ctx, tx, batch)
			})
		})
		if err != nil {
			return committed, batches, err
		}
		committed += len(batch)
		batches++
		p.logger.Debug("import batch committed", zap.Int("batch", batches), zap.Int("committed", committed))
	}
	return committed, batches, nil
}

// writeBatch upserts each entry and its two flashcards. Exported cards
// overwrite the stored card of the same direction, which keeps its id; a
// missing direction gets a new card only if the entry has none yet.
func (p *Pipeline) writeBatch(ctx context.Context, tx *sql.Tx, entries []SnapshotEntry) error {
	repo := dictionary.NewRepository(tx)
	now := p.now()
	for i := range entries {
		se := &entries[i]
		if err := repo.UpsertEntry(ctx, &se.Entry); err != nil {
			return err
		}

		have := make(map[schema.Direction]bool, 2)
		for _, c := range se.Flashcards {
			if err := repo.ReplaceFlashcard(ctx, c); err != nil {
				return err
			}
			have[c.Direction] = true
		}
		for _, dir := range []schema.Direction{schema.DirectionForward, schema.DirectionReverse} {
			if have[dir] {
				continue
			}
			if err := repo.EnsureFlashcard(ctx, schema.NewFlashcard(se.ID, dir, now)); err != nil {
				return err
			}
		}
	}
	return nil
}

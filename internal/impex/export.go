package impex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/queue"
	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// ExportOptions controls Export.
type ExportOptions struct {
	IncludeFlashcards bool
	BatchSize         int
}

// ExportReport summarizes an export.
type ExportReport struct {
	Exported int
	Skipped  []*schema.CorruptFieldError
}

type exportBatch struct {
	rows  []schema.EntryRow
	cards map[string][]*schema.Flashcard
}

// Export writes a snapshot of the whole dictionary to w. Rows with corrupt
// JSON columns are left out, logged, and counted in the snapshot's skipped
// field.
func (p *Pipeline) Export(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultExportBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan exportBatch, 2)

	g.Go(func() error {
		defer close(batches)
		return p.readBatches(gctx, opts, batches)
	})

	report := &ExportReport{}
	g.Go(func() error {
		return p.writeSnapshot(gctx, w, batches, report)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	for _, cf := range report.Skipped {
		p.logger.Warn("skipped corrupt entry in export",
			zap.String("entry_id", cf.EntryID), zap.String("word", cf.Word),
			zap.String("field", cf.Field), zap.String("reason", cf.Reason))
	}
	p.logger.Info("export complete", zap.Int("exported", report.Exported), zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

// readBatches pages through the store by id. Each page is one queue operation.
func (p *Pipeline) readBatches(ctx context.Context, opts ExportOptions, out chan<- exportBatch) error {
	after := ""
	for {
		b, err := queue.Do(ctx, p.queue, "export-batch", func(ctx context.Context) (exportBatch, error) {
			repo := dictionary.NewRepository(p.db)
			rows, err := repo.EntryRowsAfter(ctx, after, opts.BatchSize)
			if err != nil || len(rows) == 0 || !opts.IncludeFlashcards {
				return exportBatch{rows: rows}, err
			}
			ids := make([]string, len(rows))
			for i := range rows {
				ids[i] = rows[i].ID
			}
			cards, err := repo.FlashcardsForEntries(ctx, ids)
			return exportBatch{rows: rows, cards: cards}, err
		})
		if err != nil {
			return err
		}
		if len(b.rows) == 0 {
			return nil
		}

		select {
		case out <- b:
		case <-ctx.Done():
			return ctx.Err()
		}

		if len(b.rows) < opts.BatchSize {
			return nil
		}
		after = b.rows[len(b.rows)-1].ID
	}
}

// writeSnapshot streams the envelope so the whole dictionary never sits in
// memory at once. The skipped count is only known at the end, so it is the
// last field.
func (p *Pipeline) writeSnapshot(ctx context.Context, w io.Writer, in <-chan exportBatch, report *ExportReport) error {
	bw := bufio.NewWriter(w)

	header, err := json.Marshal(struct {
		Version    string `json:"version"`
		ExportedAt string `json:"exported_at"`
	}{FormatVersion, schema.FormatTime(p.now())})
	if err != nil {
		return err
	}
	// Drop the closing brace and open the entries array.
	bw.Write(header[:len(header)-1])
	bw.WriteString(`,"entries":[`)

	first := true
	for b := range in {
		for i := range b.rows {
			e, err := b.rows[i].Decode()
			if err != nil {
				cf, ok := err.(*schema.CorruptFieldError)
				if !ok {
					return err
				}
				report.Skipped = append(report.Skipped, cf)
				continue
			}

			item, err := json.Marshal(SnapshotEntry{Entry: *e, Flashcards: b.cards[e.ID]})
			if err != nil {
				return fmt.Errorf("failed to encode entry %s: %w", e.ID, err)
			}
			if !first {
				bw.WriteByte(',')
			}
			first = false
			bw.Write(item)
			report.Exported++
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	fmt.Fprintf(bw, `],"skipped":%d}`, len(report.Skipped))
	bw.WriteByte('\n')
	return bw.Flush()
}

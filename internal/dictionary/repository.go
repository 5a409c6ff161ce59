// Package dictionary owns the dictionary_entries, flashcards, decks and
// settings tables and the write path that keeps them consistent with the
// search index.
package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/store"
)

const entryColumns = `id, word, translation, definition, type, root, tags, antonyms, examples, morphology,
	created_at, created_at_timestamp_ms, updated_at, updated_at_timestamp_ms`

// FlashcardColumns lists flashcard columns in ScanFlashcard order.
const FlashcardColumns = `id, dictionary_entry_id, direction, difficulty, stability, elapsed_days, scheduled_days,
	learning_step, reps, lapses, state, due, due_timestamp_ms, last_review, last_review_timestamp_ms, is_hidden`

// Repository runs dictionary SQL against an adapter or a transaction.
type Repository struct {
	q store.Querier
}

// NewRepository binds a Repository to q.
func NewRepository(q store.Querier) *Repository {
	return &Repository{q: q}
}

// InsertEntry inserts a new entry row.
func (r *Repository) InsertEntry(ctx context.Context, e *schema.Entry) error {
	row, err := schema.EncodeEntry(e)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `INSERT INTO dictionary_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, entryArgs(row)...)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
	}
	return nil
}

// UpsertEntry inserts an entry or overwrites every column of the existing row.
func (r *Repository) UpsertEntry(ctx context.Context, e *schema.Entry) error {
	row, err := schema.EncodeEntry(e)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `INSERT INTO dictionary_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			word = excluded.word,
			translation = excluded.translation,
			definition = excluded.definition,
			type = excluded.type,
			root = excluded.root,
			tags = excluded.tags,
			antonyms = excluded.antonyms,
			examples = excluded.examples,
			morphology = excluded.morphology,
			created_at = excluded.created_at,
			created_at_timestamp_ms = excluded.created_at_timestamp_ms,
			updated_at = excluded.updated_at,
			updated_at_timestamp_ms = excluded.updated_at_timestamp_ms`, entryArgs(row)...)
	if err != nil {
		return fmt.Errorf("failed to upsert entry %s: %w", e.ID, err)
	}
	return nil
}

// UpdateEntry overwrites an existing entry. Returns schema.ErrNotFound if absent.
func (r *Repository) UpdateEntry(ctx context.Context, e *schema.Entry) error {
	row, err := schema.EncodeEntry(e)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE dictionary_entries SET
			word = ?, translation = ?, definition = ?, type = ?, root = ?, tags = ?, antonyms = ?,
			examples = ?, morphology = ?, updated_at = ?, updated_at_timestamp_ms = ?
		WHERE id = ?`,
		row.Word, row.Translation, row.Definition, row.Type, row.Root, row.Tags, row.Antonyms,
		row.Examples, row.Morphology, row.UpdatedAt, row.UpdatedAtMs, row.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", e.ID, err)
	}
	return requireAffected(res, "entry", e.ID)
}

// DeleteEntry removes an entry; its flashcards go with it via ON DELETE CASCADE.
func (r *Repository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM dictionary_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return requireAffected(res, "entry", id)
}

// DeleteAllEntries removes every entry and returns how many were removed.
func (r *Repository) DeleteAllEntries(ctx context.Context) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM dictionary_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	return res.RowsAffected()
}

// GetEntry loads and decodes one entry.
func (r *Repository) GetEntry(ctx context.Context, id string) (*schema.Entry, error) {
	row, err := scanEntryRow(r.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM dictionary_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return row.Decode()
}

// ListEntries returns decoded entries, most recently updated first.
// Rows that fail to decode are returned in skipped.
func (r *Repository) ListEntries(ctx context.Context, limit, offset int) (entries []*schema.Entry, skipped []*schema.CorruptFieldError, err error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM dictionary_entries
		ORDER BY updated_at_timestamp_ms DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list entries: %w", err)
	}
	raw, err := collectEntryRows(rows)
	if err != nil {
		return nil, nil, err
	}
	for i := range raw {
		e, err := raw[i].Decode()
		if err != nil {
			var cf *schema.CorruptFieldError
			if errors.As(err, &cf) {
				skipped = append(skipped, cf)
				continue
			}
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

// EntriesByID loads the entries with the given ids, keyed by id. Rows that
// fail to decode are returned in skipped.
func (r *Repository) EntriesByID(ctx context.Context, ids []string) (map[string]*schema.Entry, []*schema.CorruptFieldError, error) {
	out := make(map[string]*schema.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil, nil
	}

	query, args, err := sq.Select(entryColumns).
		From("dictionary_entries").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build entry query: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query entries: %w", err)
	}
	raw, err := collectEntryRows(rows)
	if err != nil {
		return nil, nil, err
	}

	var skipped []*schema.CorruptFieldError
	for i := range raw {
		e, err := raw[i].Decode()
		if err != nil {
			var cf *schema.CorruptFieldError
			if errors.As(err, &cf) {
				skipped = append(skipped, cf)
				continue
			}
			return nil, nil, err
		}
		out[e.ID] = e
	}
	return out, skipped, nil
}

// EntryRowsAfter returns up to limit raw rows with id greater than afterID,
// ordered by id. It is the keyset page used for streaming the whole table.
func (r *Repository) EntryRowsAfter(ctx context.Context, afterID string, limit int) ([]schema.EntryRow, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM dictionary_entries
		WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry batch: %w", err)
	}
	return collectEntryRows(rows)
}

// CountEntries returns the number of entries.
func (r *Repository) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM dictionary_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// MaxUpdatedAt returns the largest updated_at_timestamp_ms, or 0 for an empty table.
func (r *Repository) MaxUpdatedAt(ctx context.Context) (int64, error) {
	var ms sql.NullInt64
	if err := r.q.QueryRowContext(ctx,
		`SELECT MAX(updated_at_timestamp_ms) FROM dictionary_entries`).Scan(&ms); err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	return ms.Int64, nil
}

func entryArgs(row *schema.EntryRow) []any {
	return []any{
		row.ID, row.Word, row.Translation, row.Definition, row.Type,
		row.Root, row.Tags, row.Antonyms, row.Examples, row.Morphology,
		row.CreatedAt, row.CreatedAtMs, row.UpdatedAt, row.UpdatedAtMs,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(s rowScanner) (*schema.EntryRow, error) {
	var row schema.EntryRow
	err := s.Scan(&row.ID, &row.Word, &row.Translation, &row.Definition, &row.Type,
		&row.Root, &row.Tags, &row.Antonyms, &row.Examples, &row.Morphology,
		&row.CreatedAt, &row.CreatedAtMs, &row.UpdatedAt, &row.UpdatedAtMs)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func collectEntryRows(rows *sql.Rows) ([]schema.EntryRow, error) {
	defer rows.Close()

	var out []schema.EntryRow
	for rows.Next() {
		row, err := scanEntryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, schema.ErrNotFound)
	}
	return nil
}

package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// FlashcardColumnList returns FlashcardColumns qualified with a table alias.
func FlashcardColumnList(alias string) []string {
	cols := strings.Split(FlashcardColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return cols
}

// InsertFlashcard inserts a flashcard row.
func (r *Repository) InsertFlashcard(ctx context.Context, c *schema.Flashcard) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO flashcards (`+FlashcardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, flashcardArgs(c)...)
	if err != nil {
		return fmt.Errorf("failed to insert flashcard %s: %w", c.ID, err)
	}
	return nil
}

// ReplaceFlashcard upserts c on its (entry, direction) pair. A stored card
// keeps its id and c.ID is set to it. An id held by another entry's card is a
// constraint error; no other row is touched.
func (r *Repository) ReplaceFlashcard(ctx context.Context, c *schema.Flashcard) error {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM flashcards
		WHERE dictionary_entry_id = ? AND direction = ?`, c.EntryID, string(c.Direction)).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.InsertFlashcard(ctx, c)
	case err != nil:
		return fmt.Errorf("failed to look up %s flashcard of entry %s: %w", c.Direction, c.EntryID, err)
	}
	c.ID = id
	return r.UpdateFlashcard(ctx, c)
}

// FlashcardOwners maps each of ids that exists to its entry id.
func (r *Repository) FlashcardOwners(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sq.Select("id", "dictionary_entry_id").
		From("flashcards").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build flashcard owner query: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcard owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, entryID string
		if err := rows.Scan(&id, &entryID); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard owner: %w", err)
		}
		out[id] = entryID
	}
	return out, rows.Err()
}

// EnsureFlashcard inserts c unless the entry already has a card in that
// direction.
func (r *Repository) EnsureFlashcard(ctx context.Context, c *schema.Flashcard) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO flashcards (`+FlashcardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dictionary_entry_id, direction) DO NOTHING`, flashcardArgs(c)...)
	if err != nil {
		return fmt.Errorf("failed to ensure flashcard for entry %s: %w", c.EntryID, err)
	}
	return nil
}

// UpdateFlashcard overwrites the scheduling state and visibility of a card.
func (r *Repository) UpdateFlashcard(ctx context.Context, c *schema.Flashcard) error {
	res, err := r.q.ExecContext(ctx, `UPDATE flashcards SET
			difficulty = ?, stability = ?, elapsed_days = ?, scheduled_days = ?, learning_step = ?,
			reps = ?, lapses = ?, state = ?, due = ?, due_timestamp_ms = ?,
			last_review = ?, last_review_timestamp_ms = ?, is_hidden = ?
		WHERE id = ?`,
		c.Difficulty, c.Stability, c.ElapsedDays, c.ScheduledDays, c.LearningStep,
		c.Reps, c.Lapses, int(c.State), c.Due, c.DueMs,
		nullString(c.LastReview), nullInt64(c.LastReviewMs), boolToInt(c.IsHidden), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update flashcard %s: %w", c.ID, err)
	}
	return requireAffected(res, "flashcard", c.ID)
}

// GetFlashcard loads one card by id.
func (r *Repository) GetFlashcard(ctx context.Context, id string) (*schema.Flashcard, error) {
	c, err := ScanFlashcard(r.q.QueryRowContext(ctx,
		`SELECT `+FlashcardColumns+` FROM flashcards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flashcard %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcard %s: %w", id, err)
	}
	return c, nil
}

// FlashcardsForEntry returns the cards of one entry, forward first.
func (r *Repository) FlashcardsForEntry(ctx context.Context, entryID string) ([]*schema.Flashcard, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+FlashcardColumns+` FROM flashcards
		WHERE dictionary_entry_id = ? ORDER BY direction`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	return CollectFlashcards(rows)
}

// FlashcardsForEntries returns cards grouped by entry id.
func (r *Repository) FlashcardsForEntries(ctx context.Context, entryIDs []string) (map[string][]*schema.Flashcard, error) {
	out := make(map[string][]*schema.Flashcard, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	query, args, err := sq.Select(FlashcardColumnList("f")...).
		From("flashcards f").
		Where(sq.Eq{"f.dictionary_entry_id": entryIDs}).
		OrderBy("f.dictionary_entry_id", "f.direction").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build flashcard query: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	cards, err := CollectFlashcards(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		out[c.EntryID] = append(out[c.EntryID], c)
	}
	return out, nil
}

// ScanFlashcard scans one row selected with FlashcardColumns.
func ScanFlashcard(s interface{ Scan(...any) error }) (*schema.Flashcard, error) {
	var (
		c            schema.Flashcard
		direction    string
		state        int
		lastReview   sql.NullString
		lastReviewMs sql.NullInt64
		hidden       int
	)
	err := s.Scan(&c.ID, &c.EntryID, &direction, &c.Difficulty, &c.Stability, &c.ElapsedDays, &c.ScheduledDays,
		&c.LearningStep, &c.Reps, &c.Lapses, &state, &c.Due, &c.DueMs, &lastReview, &lastReviewMs, &hidden)
	if err != nil {
		return nil, err
	}
	c.Direction = schema.Direction(direction)
	c.State = schema.CardState(state)
	c.IsHidden = hidden != 0
	if lastReview.Valid {
		s := lastReview.String
		c.LastReview = &s
	}
	if lastReviewMs.Valid {
		ms := lastReviewMs.Int64
		c.LastReviewMs = &ms
	}
	return &c, nil
}

// CollectFlashcards scans and closes rows.
func CollectFlashcards(rows *sql.Rows) ([]*schema.Flashcard, error) {
	defer rows.Close()

	var out []*schema.Flashcard
	for rows.Next() {
		c, err := ScanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flashcards: %w", err)
	}
	return out, nil
}

func flashcardArgs(c *schema.Flashcard) []any {
	return []any{
		c.ID, c.EntryID, string(c.Direction), c.Difficulty, c.Stability, c.ElapsedDays, c.ScheduledDays,
		c.LearningStep, c.Reps, c.Lapses, int(c.State), c.Due, c.DueMs,
		nullString(c.LastReview), nullInt64(c.LastReviewMs), boolToInt(c.IsHidden),
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// GetSettings reads the singleton settings row, falling back to defaults.
func (r *Repository) GetSettings(ctx context.Context) (schema.Settings, error) {
	var (
		s       schema.Settings
		reverse int
		mode    string
	)
	err := r.q.QueryRowContext(ctx, `SELECT show_reverse_flashcards, show_antonyms_in_flashcard, updated_at_timestamp_ms
		FROM settings WHERE id = 1`).Scan(&reverse, &mode, &s.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.DefaultSettings(), nil
	}
	if err != nil {
		return schema.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	s.ShowReverseFlashcards = reverse != 0
	s.ShowAntonymsInFlashcard = schema.AntonymsMode(mode)
	return s, nil
}

// SaveSettings writes the singleton settings row.
func (r *Repository) SaveSettings(ctx context.Context, s schema.Settings) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO settings (id, show_reverse_flashcards, show_antonyms_in_flashcard, updated_at_timestamp_ms)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			show_reverse_flashcards = excluded.show_reverse_flashcards,
			show_antonyms_in_flashcard = excluded.show_antonyms_in_flashcard,
			updated_at_timestamp_ms = excluded.updated_at_timestamp_ms`,
		boolToInt(s.ShowReverseFlashcards), string(s.ShowAntonymsInFlashcard), s.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

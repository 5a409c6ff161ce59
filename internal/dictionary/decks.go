package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

const deckColumns = `id, name, filters, created_at_timestamp_ms, updated_at_timestamp_ms`

// InsertDeck inserts a deck.
func (r *Repository) InsertDeck(ctx context.Context, d *schema.Deck) error {
	filters, err := schema.EncodeFilters(d.Filters)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `INSERT INTO decks (`+deckColumns+`) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, filters, d.CreatedAtMs, d.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", d.ID, err)
	}
	return nil
}

// UpdateDeck overwrites a deck's name and filters.
func (r *Repository) UpdateDeck(ctx context.Context, d *schema.Deck) error {
	filters, err := schema.EncodeFilters(d.Filters)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE decks SET name = ?, filters = ?, updated_at_timestamp_ms = ? WHERE id = ?`,
		d.Name, filters, d.UpdatedAtMs, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update deck %s: %w", d.ID, err)
	}
	return requireAffected(res, "deck", d.ID)
}

// DeleteDeck removes a deck.
func (r *Repository) DeleteDeck(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	return requireAffected(res, "deck", id)
}

// GetDeck loads one deck.
func (r *Repository) GetDeck(ctx context.Context, id string) (*schema.Deck, error) {
	d, err := scanDeck(r.q.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deck %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck %s: %w", id, err)
	}
	return d, nil
}

// ListDecks returns every deck ordered by name.
func (r *Repository) ListDecks(ctx context.Context) ([]*schema.Deck, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+deckColumns+` FROM decks ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var out []*schema.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDeck(s rowScanner) (*schema.Deck, error) {
	var (
		d       schema.Deck
		filters string
	)
	if err := s.Scan(&d.ID, &d.Name, &filters, &d.CreatedAtMs, &d.UpdatedAtMs); err != nil {
		return nil, err
	}
	f, err := schema.DecodeFilters(filters)
	if err != nil {
		return nil, fmt.Errorf("deck %s: %w", d.ID, err)
	}
	d.Filters = f
	return &d, nil
}

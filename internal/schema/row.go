package schema

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// EntryRow is the stored shape of an Entry. JSON-valued columns hold raw text.
type EntryRow struct {
	ID          string
	Word        string
	Translation string
	Definition  sql.NullString
	Type        string
	Root        sql.NullString
	Tags        sql.NullString
	Antonyms    sql.NullString
	Examples    sql.NullString
	Morphology  sql.NullString
	CreatedAt   string
	CreatedAtMs int64
	UpdatedAt   string
	UpdatedAtMs int64
}

// Decode parses and validates every JSON column.
// A failure is reported as a *CorruptFieldError naming the first bad column.
func (r *EntryRow) Decode() (*Entry, error) {
	e := &Entry{
		ID:          r.ID,
		Word:        r.Word,
		Translation: r.Translation,
		Definition:  r.Definition.String,
		Type:        WordType(r.Type),
		CreatedAt:   r.CreatedAt,
		CreatedAtMs: r.CreatedAtMs,
		UpdatedAt:   r.UpdatedAt,
		UpdatedAtMs: r.UpdatedAtMs,
	}

	var err error
	if e.Root, err = decodeJSON[[]string](r.Root); err != nil {
		return nil, r.corrupt("root", err.Error())
	}
	if e.Tags, err = decodeJSON[[]string](r.Tags); err != nil {
		return nil, r.corrupt("tags", err.Error())
	}
	if e.Antonyms, err = decodeJSON[[]Antonym](r.Antonyms); err != nil {
		return nil, r.corrupt("antonyms", err.Error())
	}
	if e.Examples, err = decodeJSON[[]Example](r.Examples); err != nil {
		return nil, r.corrupt("examples", err.Error())
	}
	if e.Morphology, err = decodeJSON[*Morphology](r.Morphology); err != nil {
		return nil, r.corrupt("morphology", err.Error())
	}

	fe := &fieldErrors{}
	validateRoot(fe, e.Root)
	validateTags(fe, e.Tags)
	validateAntonyms(fe, e.Antonyms)
	validateExamples(fe, e.Examples)
	validateMorphology(fe, e.Morphology)
	if len(fe.errs) > 0 {
		first := fe.errs[0]
		return nil, r.corrupt(first.Field, first.Message)
	}

	return e, nil
}

func (r *EntryRow) corrupt(field, reason string) *CorruptFieldError {
	return &CorruptFieldError{EntryID: r.ID, Word: r.Word, Field: field, Reason: reason}
}

// EncodeEntry serializes an Entry into its stored shape.
func EncodeEntry(e *Entry) (*EntryRow, error) {
	r := &EntryRow{
		ID:          e.ID,
		Word:        e.Word,
		Translation: e.Translation,
		Definition:  sql.NullString{String: e.Definition, Valid: e.Definition != ""},
		Type:        string(e.Type),
		CreatedAt:   e.CreatedAt,
		CreatedAtMs: e.CreatedAtMs,
		UpdatedAt:   e.UpdatedAt,
		UpdatedAtMs: e.UpdatedAtMs,
	}

	var err error
	if r.Root, err = encodeList(e.Root); err != nil {
		return nil, fmt.Errorf("failed to encode root: %w", err)
	}
	if r.Tags, err = encodeList(e.Tags); err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	if r.Antonyms, err = encodeList(e.Antonyms); err != nil {
		return nil, fmt.Errorf("failed to encode antonyms: %w", err)
	}
	if r.Examples, err = encodeList(e.Examples); err != nil {
		return nil, fmt.Errorf("failed to encode examples: %w", err)
	}
	if m := e.Morphology; m != nil && (m.Ism != nil || m.Verb != nil) {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode morphology: %w", err)
		}
		r.Morphology = sql.NullString{String: string(b), Valid: true}
	}

	return r, nil
}

// EncodeFilters serializes deck filters for the decks.filters column.
func EncodeFilters(f DeckFilters) (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode deck filters: %w", err)
	}
	return string(b), nil
}

// DecodeFilters parses the decks.filters column.
func DecodeFilters(raw string) (DeckFilters, error) {
	f, err := decodeJSON[DeckFilters](sql.NullString{String: raw, Valid: true})
	if err != nil {
		return DeckFilters{}, fmt.Errorf("%w: deck filters: %v", ErrCorruptRow, err)
	}
	return f, nil
}

func decodeJSON[T any](raw sql.NullString) (T, error) {
	var v T
	s := strings.TrimSpace(raw.String)
	if !raw.Valid || s == "" || s == "null" {
		return v, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		return v, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func encodeList[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func indexed(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}

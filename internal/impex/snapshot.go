// Package impex moves the dictionary in and out of portable JSON snapshots.
//
// Export streams the store in batches and skips rows whose JSON columns no
// longer validate. Import validates the whole snapshot before it writes
// anything, then upserts in batches through the operation queue.
package impex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// FormatVersion is the snapshot format written by Export.
const FormatVersion = "v1.0.0"

// Snapshot is the top-level export document.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt string          `json:"exported_at,omitempty"`
	Entries    []SnapshotEntry `json:"entries"`
	Skipped    int             `json:"skipped"`
}

// SnapshotEntry is an entry with its flashcards, when they were exported.
type SnapshotEntry struct {
	schema.Entry
	Flashcards []*schema.Flashcard `json:"flashcards,omitempty"`
}

// Parse decodes a snapshot. A bare JSON array of entries is accepted and
// treated as the current format version. Errors are *ImportError.
func Parse(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ImportError{Kind: KindInvalidJSON, Errors: []schema.FieldError{{Message: "empty document"}}}
	}

	snap := &Snapshot{}
	var err error
	if trimmed[0] == '[' {
		snap.Version = FormatVersion
		err = json.Unmarshal(trimmed, &snap.Entries)
	} else {
		err = json.Unmarshal(trimmed, snap)
	}
	if err != nil {
		return nil, decodeError(err)
	}

	if err := checkVersion(snap.Version); err != nil {
		return nil, err
	}
	return snap, nil
}

// decodeError classifies a json error. Type mismatches are schema problems;
// everything else means the document is not valid JSON.
func decodeError(err error) *ImportError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "(root)"
		}
		return &ImportError{
			Kind:   KindSchemaValidation,
			Errors: []schema.FieldError{{Field: field, Message: fmt.Sprintf("must be %s (got %s)", typeErr.Type, typeErr.Value)}},
			Err:    err,
		}
	}
	return &ImportError{Kind: KindInvalidJSON, Errors: []schema.FieldError{{Message: err.Error()}}, Err: err}
}

func checkVersion(v string) error {
	if v == "" {
		return &ImportError{Kind: KindSchemaValidation, Errors: []schema.FieldError{{Field: "version", Message: "is required"}}}
	}
	canonical := v
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return &ImportError{Kind: KindSchemaValidation, Errors: []schema.FieldError{{Field: "version", Message: fmt.Sprintf("is not a semantic version (got %q)", v)}}}
	}
	if semver.Major(canonical) != semver.Major(FormatVersion) {
		return &ImportError{Kind: KindUnsupportedVersion, Errors: []schema.FieldError{{
			Field:   "version",
			Message: fmt.Sprintf("%s is not compatible with %s", v, FormatVersion),
		}}}
	}
	return nil
}

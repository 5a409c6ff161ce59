package impex

import (
	"fmt"
	"strings"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// ErrorKind classifies an import failure that happened before any write.
type ErrorKind int

const (
	KindInvalidJSON ErrorKind = iota + 1
	KindSchemaValidation
	KindUnsupportedVersion
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidJSON:
		return "invalid JSON"
	case KindSchemaValidation:
		return "schema validation failed"
	case KindUnsupportedVersion:
		return "unsupported version"
	default:
		return "unknown"
	}
}

// ImportError rejects a snapshot. Nothing was written.
type ImportError struct {
	Kind   ErrorKind
	Errors []schema.FieldError
	Err    error
}

func (e *ImportError) Error() string {
	if len(e.Errors) == 0 {
		return "import: " + e.Kind.String()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fe.String())
	}
	return fmt.Sprintf("import: %s: %s", e.Kind, strings.Join(msgs, "; "))
}

func (e *ImportError) Unwrap() error {
	if e.Kind == KindSchemaValidation && e.Err == nil {
		return schema.ErrValidation
	}
	return e.Err
}

// PartialImportError reports a store failure after some batches had already
// committed.
type PartialImportError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import: committed %d of %d entries before failing: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialImportError) Unwrap() error { return e.Err }

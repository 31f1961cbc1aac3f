package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Schema mismatches
// =============================================================================

// MismatchKind classifies a single schema mismatch.
type MismatchKind string

// Mismatch kinds.
const (
	// MismatchMissing means a declared column is absent.
	MismatchMissing MismatchKind = "missing"
	// MismatchType means a column is present with an incompatible type.
	MismatchType MismatchKind = "type_mismatch"
	// MismatchUnexpected means input records carry a key the schema does not declare.
	MismatchUnexpected MismatchKind = "unexpected"
)

// Mismatch is one column-level disagreement between a declared and an
// observed schema.
type Mismatch struct {
	Kind     MismatchKind
	Column   string
	Expected string // declared type, empty for unexpected keys
	Observed string // observed type, "absent" for missing columns
	Rows     []int  // offending record indexes, only set for record input
}

// String renders the mismatch on one line.
func (m Mismatch) String() string {
	var s string
	switch m.Kind {
	case MismatchMissing:
		s = fmt.Sprintf("column %q is missing (expected %s)", m.Column, m.Expected)
	case MismatchUnexpected:
		s = fmt.Sprintf("column %q is not declared", m.Column)
	default:
		s = fmt.Sprintf("column %q has type %s, expected %s", m.Column, m.Observed, m.Expected)
	}
	if len(m.Rows) > 0 {
		s += fmt.Sprintf(" (rows %s)", formatRows(m.Rows))
	}
	return s
}

func formatRows(rows []int) string {
	const maxShown = 5
	parts := make([]string, 0, maxShown+1)
	for i, r := range rows {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... %d more", len(rows)-maxShown))
			break
		}
		parts = append(parts, fmt.Sprintf("%d", r))
	}
	return strings.Join(parts, ", ")
}

// SchemaError is returned when an observed container does not satisfy a
// declared schema. It always carries the complete mismatch list.
type SchemaError struct {
	Model      string
	Declared   []Field
	Observed   []Field
	Mismatches []Mismatch
}

func (e *SchemaError) Error() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "schema %s: %d mismatch", e.Model, len(e.Mismatches))
	if len(e.Mismatches) != 1 {
		b.WriteString("es")
	}
	for i, m := range e.Mismatches {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(m.String())
	}
	return b.String()
}

// Columns returns the names of the mismatched columns of the given kind, in
// mismatch order. An empty kind matches all.
func (e *SchemaError) Columns(kind MismatchKind) []string {
	var out []string
	for _, m := range e.Mismatches {
		if kind == "" || m.Kind == kind {
			out = append(out, m.Column)
		}
	}
	return out
}

// AsSchemaError extracts a *SchemaError from err.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// =============================================================================
// Record and binding errors
// =============================================================================

// RecordError reports input records whose shape cannot be reconciled with an
// explicit type mapping (for example a positional mapping of the wrong arity).
type RecordError struct {
	Model  string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("records for schema %s: %s", e.Model, e.Reason)
}

// BindingError reports use of a column descriptor that was never bound to a
// schema. It is raised as a panic value: it signals a programming defect.
type BindingError struct {
	Op string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("column descriptor: %s before it was bound to a schema", e.Op)
}

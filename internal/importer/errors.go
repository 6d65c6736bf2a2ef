// Package importer implements the tabular reconciliation engine: it reads
// heterogeneous spreadsheet exports, clusters rows into cohorts, resolves or
// creates the matching store entities, and tracks partial success per row
// while building a human-readable audit log.
package importer

import "fmt"

// StructuralError invalidates the whole run: an unparsable file, a missing
// mandatory column, an ambiguous tank-to-cohort mapping, or a missing fixed
// reference code. It propagates uncaught to the run boundary.
type StructuralError struct {
	Msg string
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

func structuralf(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

// RowError scopes a failure to one sheet row. The run controller catches it
// at the row boundary, degrades the row to not-entered, and continues.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseError reports an unparsable cell value.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Msg)
}

// NotFoundError reports a lookup that matched nothing.
type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Key)
}

// AmbiguousMatchError reports a lookup that was required to be unique but
// matched several candidates.
type AmbiguousMatchError struct {
	What       string
	Key        string
	Candidates int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s %q matches %d candidates", e.What, e.Key, e.Candidates)
}

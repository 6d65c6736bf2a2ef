package importer

import (
	"fmt"
	"strings"
)

// Log accumulates the human-readable audit trail of one import run. It is
// returned to the uploader verbatim, so every message names rows and values
// the way the source sheet shows them.
type Log struct {
	b        strings.Builder
	warnings int
	failures int
}

// Linef appends one formatted line.
func (l *Log) Linef(format string, args ...any) {
	fmt.Fprintf(&l.b, format+"\n", args...)
}

// Warnf appends a soft warning. Warnings never fail a row or the run.
func (l *Log) Warnf(format string, args ...any) {
	l.warnings++
	l.Linef("Warning: "+format, args...)
}

// RowFail appends a failure block for one row: the row number, its original
// cell values, and the error that stopped it.
func (l *Log) RowFail(row Row, err error) {
	l.failures++
	l.Linef("Error parsing row %d:", row.Index)
	if raw := row.Raw(); raw != "" {
		l.Linef("  %s", raw)
	}
	l.Linef("  %v", err)
}

// Summary appends the closing parsed/entered tallies.
func (l *Log) Summary(parsed, entered, total int) {
	l.Linef("%d of %d rows parsed", parsed, total)
	l.Linef("%d of %d rows entered", entered, total)
}

// Warnings reports how many soft warnings were recorded.
func (l *Log) Warnings() int { return l.warnings }

// Failures reports how many rows failed.
func (l *Log) Failures() int { return l.failures }

func (l *Log) String() string { return l.b.String() }

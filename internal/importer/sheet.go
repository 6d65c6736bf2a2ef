package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies the physical encoding of an uploaded sheet.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Row is one data row of a loaded sheet. Index is the 1-based row number in
// the original file, so audit messages match what the uploader sees in their
// spreadsheet program.
type Row struct {
	Index   int
	columns []string
	cells   map[string]string
}

// Get returns the cleaned value of the named column, or "" when the column
// is absent.
func (r Row) Get(column string) string { return CleanCell(r.cells[column]) }

// Raw renders the row's original cell values for audit-log failure blocks.
// Empty cells are omitted.
func (r Row) Raw() string {
	var b strings.Builder
	for _, col := range r.columns {
		v := r.cells[col]
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%s", col, v)
	}
	return b.String()
}

// Sheet is a loaded tabular file: the cleaned header row plus every
// non-blank data row beneath it.
type Sheet struct {
	Columns []string
	Rows    []Row
}

// LoadSheet reads a sheet in the given format. headerRow is the 1-based row
// holding the column headers; rows above it are discarded, rows below it
// become data rows, and fully blank rows are dropped.
func LoadSheet(r io.Reader, format Format, headerRow int) (*Sheet, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	var records [][]string
	var err error
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, structuralf("unsupported sheet format %q", format)
	}
	if err != nil {
		return nil, &StructuralError{Msg: "load sheet", Err: err}
	}
	if len(records) < headerRow {
		return nil, structuralf("sheet has %d rows, header expected at row %d", len(records), headerRow)
	}

	columns := make([]string, 0, len(records[headerRow-1]))
	for _, h := range records[headerRow-1] {
		columns = append(columns, CleanCell(h))
	}

	sheet := &Sheet{Columns: columns}
	for i, record := range records[headerRow:] {
		cells := make(map[string]string, len(columns))
		blank := true
		for j, col := range columns {
			if col == "" || j >= len(record) {
				continue
			}
			cells[col] = record[j]
			if CleanCell(record[j]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{
			Index:   headerRow + 1 + i,
			columns: columns,
			cells:   cells,
		})
	}
	return sheet, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// RequireColumns fails the run when any of the given headers is missing from
// the sheet.
func (s *Sheet) RequireColumns(headers []string) error {
	have := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		have[c] = true
	}
	var missing []string
	for _, h := range headers {
		if !have[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return structuralf("missing mandatory columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireFilled fails the run when any data row leaves one of the given
// columns blank.
func (s *Sheet) RequireFilled(headers []string) error {
	for _, row := range s.Rows {
		for _, h := range headers {
			if row.Get(h) == "" {
				return structuralf("row %d: mandatory column %q is blank", row.Index, h)
			}
		}
	}
	return nil
}

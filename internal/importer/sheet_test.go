package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadSheetCSV(t *testing.T) {
	csv := strings.Join([]string{
		"River,Site,Year",
		"Miramichi,Juniper,2019",
		",,",
		"  Restigouche , Upsalquitch ,2020",
	}, "\n")

	sheet, err := LoadSheet(strings.NewReader(csv), FormatCSV, 1)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	if len(sheet.Columns) != 3 || sheet.Columns[0] != "River" {
		t.Fatalf("unexpected columns %v", sheet.Columns)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected 2 data rows after dropping the blank one, got %d", len(sheet.Rows))
	}
	if sheet.Rows[0].Index != 2 || sheet.Rows[1].Index != 4 {
		t.Fatalf("row indexes should match the source file, got %d and %d", sheet.Rows[0].Index, sheet.Rows[1].Index)
	}
	if got := sheet.Rows[1].Get("Site"); got != "Upsalquitch" {
		t.Fatalf("Get should clean the cell, got %q", got)
	}
}

func TestLoadSheetHeaderOffset(t *testing.T) {
	csv := strings.Join([]string{
		"Electrofishing Data 2020,,",
		"River,Site,Year",
		"Miramichi,Juniper,2020",
	}, "\n")

	sheet, err := LoadSheet(strings.NewReader(csv), FormatCSV, 2)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	if len(sheet.Rows) != 1 {
		t.Fatalf("expected 1 data row, got %d", len(sheet.Rows))
	}
	if sheet.Rows[0].Index != 3 {
		t.Fatalf("row index = %d, want 3", sheet.Rows[0].Index)
	}
	if got := sheet.Rows[0].Get("River"); got != "Miramichi" {
		t.Fatalf("Get(River) = %q", got)
	}
}

func TestLoadSheetXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	rows := [][]any{
		{"River", "Site", "Year"},
		{"Miramichi", "Juniper", 2019},
		{"Nashwaak", "", 2020},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	sheet, err := LoadSheet(&buf, FormatXLSX, 1)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Get("River"); got != "Nashwaak" {
		t.Fatalf("Get(River) = %q", got)
	}
	if got := sheet.Rows[0].Get("Year"); got != "2019" {
		t.Fatalf("Get(Year) = %q", got)
	}
}

func TestRequireColumns(t *testing.T) {
	sheet := &Sheet{Columns: []string{"River", "Year"}}
	if err := sheet.RequireColumns([]string{"River", "Year"}); err != nil {
		t.Fatalf("RequireColumns: %v", err)
	}
	err := sheet.RequireColumns([]string{"River", "Month", "Day"})
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %T", err)
	}
	if !strings.Contains(se.Error(), "Month") || !strings.Contains(se.Error(), "Day") {
		t.Fatalf("error should name the missing columns: %v", se)
	}
}

func TestRequireFilled(t *testing.T) {
	csv := strings.Join([]string{
		"River,Year",
		"Miramichi,2019",
		",2020",
	}, "\n")
	sheet, err := LoadSheet(strings.NewReader(csv), FormatCSV, 1)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	err = sheet.RequireFilled([]string{"River"})
	if err == nil {
		t.Fatal("expected error for blank mandatory cell")
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Fatalf("error should name the offending row: %v", err)
	}
}

package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func loadCSV(t *testing.T, lines ...string) *Sheet {
	t.Helper()
	sheet, err := LoadSheet(strings.NewReader(strings.Join(lines, "\n")), FormatCSV, 1)
	if err != nil {
		t.Fatalf("load sheet: %v", err)
	}
	return sheet
}

func TestPrepareElectrofishingSharedCohort(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	cfg := MactaquacElectrofishing()

	sheet := loadCSV(t,
		"River,Collection,Group,Destination Pond",
		"Miramichi,19F,,5",
		"Miramichi,19F,,5.0",
		"Miramichi,19F,,",
	)

	assignments, err := prepareElectrofishing(context.Background(), res, cfg, sheet)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	first := assignments.ByRow[2]
	second := assignments.ByRow[3]
	if first == nil || second == nil {
		t.Fatal("rows with a destination tank must get a cohort")
	}
	if first != second {
		t.Fatal("rows naming tank 5 and 5.0 must share one cohort")
	}
	if first.Tank != "5" {
		t.Fatalf("tank name should be normalised, got %q", first.Tank)
	}
	if _, ok := assignments.ByRow[4]; ok {
		t.Fatal("observation-only row must carry no cohort")
	}
	if got := len(f.store.ListGroups()); got != 1 {
		t.Fatalf("store holds %d groups, want 1", got)
	}
	if got := len(f.store.ListContainerLinks()); got != 1 {
		t.Fatalf("store holds %d container links, want 1", got)
	}
}

func TestPrepareElectrofishingAmbiguousTank(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	cfg := MactaquacElectrofishing()

	sheet := loadCSV(t,
		"River,Collection,Group,Destination Pond",
		"Miramichi,19F,,5",
		"Miramichi,19F,A,5",
	)

	_, err := prepareElectrofishing(context.Background(), res, cfg, sheet)
	if err == nil {
		t.Fatal("two cohorts claiming one tank must fail the run")
	}
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %T: %v", err, err)
	}
	if !strings.Contains(se.Error(), "tank \"5\"") {
		t.Fatalf("error should name the contested tank: %v", se)
	}
}

func TestPrepareElectrofishingMarkedCohort(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	cfg := MactaquacElectrofishing()

	sheet := loadCSV(t,
		"River,Collection,Group,Destination Pond",
		"Miramichi,19F,A,5",
		"Miramichi,19F,,6",
	)

	assignments, err := prepareElectrofishing(context.Background(), res, cfg, sheet)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	marked := assignments.ByRow[2]
	plain := assignments.ByRow[3]
	if marked == nil || plain == nil {
		t.Fatal("both rows should be assigned")
	}
	if marked.Group.ID == plain.Group.ID {
		t.Fatal("program-group mark must split cohorts")
	}
	if got := len(f.store.ListGroups()); got != 2 {
		t.Fatalf("store holds %d groups, want 2", got)
	}
}

func TestPrepareElectrofishingUnknownStock(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	cfg := MactaquacElectrofishing()

	sheet := loadCSV(t,
		"River,Collection,Group,Destination Pond",
		"Nowhere,19F,,5",
	)

	_, err := prepareElectrofishing(context.Background(), res, cfg, sheet)
	if err == nil {
		t.Fatal("unknown stock must fail the run")
	}
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %T: %v", err, err)
	}
}

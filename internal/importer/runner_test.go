package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hatcherycore/internal/core"
	"hatcherycore/pkg/domain"
)

func runCSV(t *testing.T, f *fixture, cfg ImportConfig, lines ...string) RunResult {
	t.Helper()
	runner := NewRunner(f.store)
	return runner.Run(context.Background(), f.event, cfg, strings.NewReader(strings.Join(lines, "\n")), FormatCSV)
}

func TestRunElectrofishingScenario(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Group,Destination Pond,# Fish Caught,# Fish Observed,Latitude,Longitude,Temperature,Crew",
		"Miramichi,Juniper,2019,6,3,19F,,5,2,,,,18.5 C,\"Alice, Bob\"",
		"Miramichi,Juniper,2019,6,4,19F,,5.0,3,,,,,Alice",
		"Miramichi,,2019,6,5,19F,,,,1,46.1234567,-66.5,,",
	)

	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}
	if result.RowsTotal != 3 || result.RowsParsed != 3 || result.RowsEntered != 3 {
		t.Fatalf("totals = %d/%d/%d, want 3 parsed and 3 entered of 3\n%s",
			result.RowsTotal, result.RowsParsed, result.RowsEntered, result.Log)
	}
	if !strings.Contains(result.Log, "3 of 3 rows parsed") || !strings.Contains(result.Log, "3 of 3 rows entered") {
		t.Fatalf("summary missing from log:\n%s", result.Log)
	}

	groups := f.store.ListGroups()
	if len(groups) != 1 {
		t.Fatalf("store holds %d groups, want 1", len(groups))
	}

	links := f.store.ListContainerLinks()
	if len(links) != 1 {
		t.Fatalf("store holds %d container links, want 1", len(links))
	}

	if err := f.store.View(context.Background(), func(v domain.TransactionView) error {
		if got := len(v.ListLocations()); got != 3 {
			t.Fatalf("store holds %d locations, want one per row", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	cat := f.catalog(t)
	var caught, observed *domain.Count
	for _, c := range f.store.ListCounts() {
		c := c
		switch c.CountCodeID {
		case cat.FishCaught.ID:
			caught = &c
		case cat.FishObserved.ID:
			observed = &c
		}
	}
	if caught == nil || caught.Value != 5 {
		t.Fatalf("caught tally = %+v, want a single count of 5", caught)
	}
	if caught.ContainerLinkID == nil || *caught.ContainerLinkID != links[0].ID {
		t.Fatal("caught tally must anchor on the tank placement")
	}
	if observed == nil || observed.Value != 1 {
		t.Fatalf("observed tally = %+v, want a single count of 1", observed)
	}
	if observed.LocationID == nil {
		t.Fatal("observed tally must anchor on the row's location")
	}
}

func TestRunRowFailureIsolation(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Destination Pond,# Fish Caught",
		"Miramichi,Juniper,2019,6,3,19F,5,2",
		"Miramichi,Juniper,2019,13,3,19F,5,3",
	)

	if !result.Success {
		t.Fatalf("a bad row must not fail the run:\n%s", result.Log)
	}
	if result.RowsParsed != 1 {
		t.Fatalf("parsed = %d, want 1\n%s", result.RowsParsed, result.Log)
	}
	if !strings.Contains(result.Log, "Error parsing row 3") {
		t.Fatalf("log should carry the failed row block:\n%s", result.Log)
	}
	if len(result.RowFailures) != 1 || result.RowFailures[0].Row != 3 {
		t.Fatalf("RowFailures = %+v, want one failure for row 3", result.RowFailures)
	}
	if !strings.Contains(result.Log, "1 of 2 rows parsed") {
		t.Fatalf("summary should count the failure:\n%s", result.Log)
	}

	// The bad row's caught tally must not leak into the aggregate.
	cat := f.catalog(t)
	for _, c := range f.store.ListCounts() {
		if c.CountCodeID == cat.FishCaught.ID && c.Value != 2 {
			t.Fatalf("caught tally = %d, want 2", c.Value)
		}
	}
}

func TestRunCaughtWithoutTank(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Destination Pond,# Fish Caught",
		"Miramichi,Juniper,2019,6,3,19F,,4",
	)

	if !result.Success {
		t.Fatalf("run should survive the row failure:\n%s", result.Log)
	}
	if result.RowsParsed != 0 {
		t.Fatalf("parsed = %d, want 0", result.RowsParsed)
	}
	if !strings.Contains(result.Log, "no destination container") {
		t.Fatalf("log should explain the failure:\n%s", result.Log)
	}
}

func TestRunNanTankIsObservationOnly(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	// pandas-roundtripped exports render empty cells as the literal "nan".
	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Destination Pond,# Fish Observed",
		"Miramichi,Juniper,2019,6,3,19F,nan,2",
	)

	if !result.Success || result.RowsParsed != 1 {
		t.Fatalf("run failed:\n%s", result.Log)
	}
	if got := len(f.store.ListContainerLinks()); got != 0 {
		t.Fatalf("store holds %d container links, want none for an observation row", got)
	}
	if err := f.store.View(context.Background(), func(v domain.TransactionView) error {
		for _, c := range v.ListContainers() {
			if c.Name == "nan" {
				t.Fatal("a nan cell must not become a container name")
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRunMissingMandatoryColumn(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Collection",
		"Miramichi,Juniper,2019,6,19F",
	)

	if result.Success {
		t.Fatal("missing mandatory column must fail the run")
	}
	if !strings.Contains(result.Log, "Import failed") || !strings.Contains(result.Log, "Day") {
		t.Fatalf("log should name the missing column:\n%s", result.Log)
	}
}

func TestRunUncataloguedSiteWarning(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Destination Pond,Latitude,Longitude",
		"Miramichi,Mystery Pool,2019,6,3,19F,5,46.1,-66.5",
	)

	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}
	if result.RowsParsed != 1 {
		t.Fatalf("parsed = %d, want 1\n%s", result.RowsParsed, result.Log)
	}
	if !strings.Contains(result.Log, "Warning") || !strings.Contains(result.Log, "Mystery Pool") {
		t.Fatalf("log should warn about the uncatalogued site:\n%s", result.Log)
	}
}

func TestRunCrewLeadPostStep(t *testing.T) {
	f := newFixture(t)
	cfg := ColdbrookElectrofishing()
	cfg.HeaderRow = 1

	result := runCSV(t, f, cfg,
		"River,Site Name,Year,Month,Day,Year Class,End Tank,# Caught,Crew,Crew Lead",
		"Miramichi,Juniper,2019,6,3,19F,5,2,Bob,Alice",
	)

	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}

	cat := f.catalog(t)
	leads, members := 0, 0
	if err := f.store.View(context.Background(), func(v domain.TransactionView) error {
		for _, pe := range v.ListPersonnelEntries() {
			switch pe.RoleCodeID {
			case cat.CrewLead.ID:
				leads++
				if pe.Name != "Alice" {
					t.Fatalf("crew lead = %q, want Alice", pe.Name)
				}
			case cat.CrewMember.ID:
				members++
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if leads != 1 || members != 1 {
		t.Fatalf("personnel = %d leads and %d members, want 1 and 1", leads, members)
	}
}

func TestRunFailedPostStepDropsTallies(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()
	cfg.PostSteps = append(cfg.PostSteps, func(ctx context.Context, rc *RowContext) error {
		return errors.New("post step rejected the row")
	})

	result := runCSV(t, f, cfg,
		"River,Site,Year,Month,Day,Collection,Destination Pond,# Fish Caught",
		"Miramichi,Juniper,2019,6,3,19F,5,4",
	)

	if !result.Success {
		t.Fatalf("run should survive the row failure:\n%s", result.Log)
	}
	if result.RowsParsed != 0 {
		t.Fatalf("parsed = %d, want 0", result.RowsParsed)
	}

	cat := f.catalog(t)
	for _, c := range f.store.ListCounts() {
		if c.CountCodeID == cat.FishCaught.ID {
			t.Fatalf("failed row leaked a caught tally of %d", c.Value)
		}
	}
}

func TestRunMovementVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed the origin cohort the way a prior electrofishing import would.
	res := f.resolver(t)
	start, _, err := res.ResolveOrCreateGroup(ctx, GroupKey{StockID: f.stock.ID, CollectionID: f.coll.ID, Year: 2019})
	if err != nil {
		t.Fatalf("seed cohort: %v", err)
	}

	cfg := TankMovement()
	result := runCSV(t, f, cfg,
		"River,Year,Month,Day,Collection,Origin Tank,Destination Tank,# Fish Moved",
		"Miramichi,2019,7,1,19F,1,2,3",
		"Miramichi,2019,7,1,19F,1,2,4",
	)

	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}
	if result.RowsParsed != 2 || result.RowsEntered != 2 {
		t.Fatalf("totals = %d parsed %d entered, want 2 and 2\n%s", result.RowsParsed, result.RowsEntered, result.Log)
	}

	var child *domain.Group
	for _, g := range f.store.ListGroups() {
		g := g
		if g.ParentID != nil {
			child = &g
		}
	}
	if child == nil {
		t.Fatal("movement must clone a destination cohort")
	}
	if *child.ParentID != start.ID {
		t.Fatalf("destination cohort parent = %s, want %s", *child.ParentID, start.ID)
	}

	cat := f.catalog(t)
	removedTotal := 0
	removedCounts := 0
	for _, c := range f.store.ListCounts() {
		if c.CountCodeID == cat.FishRemoved.ID {
			removedCounts++
			removedTotal += c.Value
		}
	}
	if removedCounts != 1 || removedTotal != 7 {
		t.Fatalf("removed tally = %d counts summing %d, want one count of 7", removedCounts, removedTotal)
	}
}

func TestRunMovementAggregatesPerTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.resolver(t)
	if _, _, err := res.ResolveOrCreateGroup(ctx, GroupKey{StockID: f.stock.ID, CollectionID: f.coll.ID, Year: 2019}); err != nil {
		t.Fatalf("seed cohort: %v", err)
	}

	// Three rows draining tank 1: two into tank 2, one into tank 3. Each
	// transition must carry exactly one removed count with the summed value.
	cfg := TankMovement()
	result := runCSV(t, f, cfg,
		"River,Year,Month,Day,Collection,Origin Tank,Destination Tank,# Fish Moved",
		"Miramichi,2019,7,1,19F,1,2,1",
		"Miramichi,2019,7,1,19F,1,2,1",
		"Miramichi,2019,7,1,19F,1,3,1",
	)
	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}

	cat := f.catalog(t)
	var values []int
	for _, c := range f.store.ListCounts() {
		if c.CountCodeID == cat.FishRemoved.ID {
			values = append(values, c.Value)
		}
	}
	if len(values) != 2 {
		t.Fatalf("removed counts = %v, want one per transition", values)
	}
	if !(values[0] == 2 && values[1] == 1 || values[0] == 1 && values[1] == 2) {
		t.Fatalf("removed counts = %v, want 2 and 1", values)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	f := newFixture(t)
	cfg := MactaquacElectrofishing()
	rec := core.NewExpvarMetricsRecorder("runner_test")

	runner := NewRunner(f.store).WithMetrics(rec)
	result := runner.Run(context.Background(), f.event, cfg, strings.NewReader(strings.Join([]string{
		"River,Site,Year,Month,Day,Collection,Destination Pond,# Fish Caught",
		"Miramichi,Juniper,2019,6,3,19F,5,2",
	}, "\n")), FormatCSV)

	if !result.Success {
		t.Fatalf("run failed:\n%s", result.Log)
	}
	snap := rec.Snapshot()
	if snap.Runs["succeeded"] != 1 {
		t.Fatalf("runs succeeded = %d, want 1", snap.Runs["succeeded"])
	}
	if snap.Rows["parsed"] != 1 || snap.Rows["entered"] != 1 {
		t.Fatalf("row totals = %d parsed %d entered, want 1 and 1", snap.Rows["parsed"], snap.Rows["entered"])
	}
	if len(snap.Results["run_loading"]) == 0 {
		t.Fatal("phase timings should be recorded")
	}
}

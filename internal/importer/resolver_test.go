package importer

import (
	"context"
	"testing"
	"time"

	"hatcherycore/pkg/domain"
)

func TestResolveOrCreateGroupIdempotent(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	key := GroupKey{StockID: f.stock.ID, CollectionID: f.coll.ID, Year: 2019}
	first, outcome, err := res.ResolveOrCreateGroup(ctx, key)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !outcome.Created() {
		t.Fatalf("first resolve outcome = %v, want created", outcome)
	}

	second, outcome, err := res.ResolveOrCreateGroup(ctx, key)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if outcome.Created() {
		t.Fatalf("second resolve outcome = %v, want found", outcome)
	}
	if second.ID != first.ID {
		t.Fatalf("second resolve returned a different group: %s vs %s", second.ID, first.ID)
	}
	if got := len(f.store.ListGroups()); got != 1 {
		t.Fatalf("store holds %d groups, want 1", got)
	}
}

func TestResolveOrCreateGroupMarkSeparatesCohorts(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	plain := GroupKey{StockID: f.stock.ID, CollectionID: f.coll.ID, Year: 2019}
	marked := plain
	marked.MarkID = f.markA.ID

	g1, _, err := res.ResolveOrCreateGroup(ctx, plain)
	if err != nil {
		t.Fatalf("plain cohort: %v", err)
	}
	g2, outcome, err := res.ResolveOrCreateGroup(ctx, marked)
	if err != nil {
		t.Fatalf("marked cohort: %v", err)
	}
	if !outcome.Created() {
		t.Fatal("marked cohort should not match the unmarked one")
	}
	if g1.ID == g2.ID {
		t.Fatal("mark must distinguish cohorts with the same stock, collection and year")
	}

	again, outcome, err := res.ResolveOrCreateGroup(ctx, marked)
	if err != nil {
		t.Fatalf("marked cohort again: %v", err)
	}
	if outcome.Created() || again.ID != g2.ID {
		t.Fatalf("marked cohort should be found again, got outcome %v id %s", outcome, again.ID)
	}
}

func TestResolveOrCreateLocationRefetchOnConflict(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	at := time.Date(2019, time.June, 3, 10, 0, 0, 0, time.UTC)
	loc := domain.Location{
		Category:      "Electrofishing Site",
		RiverID:       f.river.ID,
		ReleaseSiteID: &f.site.ID,
		RecordedAt:    at,
	}

	first, outcome, err := res.ResolveOrCreateLocation(ctx, loc)
	if err != nil {
		t.Fatalf("first location: %v", err)
	}
	if !outcome.Created() {
		t.Fatalf("first location outcome = %v, want created", outcome)
	}

	second, outcome, err := res.ResolveOrCreateLocation(ctx, loc)
	if err != nil {
		t.Fatalf("second location: %v", err)
	}
	if outcome.Created() {
		t.Fatal("identical location should be refetched, not recreated")
	}
	if second.ID != first.ID {
		t.Fatalf("refetch returned a different location: %s vs %s", second.ID, first.ID)
	}
}

func TestEnsureContainer(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	c1, outcome, err := res.EnsureContainer(ctx, "5")
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	if !outcome.Created() {
		t.Fatalf("outcome = %v, want created", outcome)
	}
	c2, outcome, err := res.EnsureContainer(ctx, "5")
	if err != nil {
		t.Fatalf("find container: %v", err)
	}
	if outcome.Created() || c2.ID != c1.ID {
		t.Fatalf("second lookup should find the same container, got outcome %v id %s", outcome, c2.ID)
	}
}

func TestResolveOrCreateIndividualByTag(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	ind := domain.Individual{
		Species:      defaultSpecies,
		StockID:      f.stock.ID,
		CollectionID: f.coll.ID,
		Year:         2019,
		Tag:          "989.001",
		Valid:        true,
	}
	first, outcome, err := res.ResolveOrCreateIndividual(ctx, ind)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !outcome.Created() {
		t.Fatalf("outcome = %v, want created", outcome)
	}
	second, outcome, err := res.ResolveOrCreateIndividual(ctx, ind)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if outcome.Created() || second.ID != first.ID {
		t.Fatalf("tag lookup should find the existing animal, got outcome %v id %s", outcome, second.ID)
	}
}

func TestLinkGroupToLocationIdempotent(t *testing.T) {
	f := newFixture(t)
	res := f.resolver(t)
	ctx := context.Background()

	group, _, err := res.ResolveOrCreateGroup(ctx, GroupKey{StockID: f.stock.ID, CollectionID: f.coll.ID, Year: 2019})
	if err != nil {
		t.Fatalf("resolve group: %v", err)
	}
	loc, _, err := res.ResolveOrCreateLocation(ctx, domain.Location{
		Category:      "Electrofishing Site",
		RiverID:       f.river.ID,
		ReleaseSiteID: &f.site.ID,
		RecordedAt:    time.Date(2019, time.June, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("resolve location: %v", err)
	}

	created, err := res.LinkGroupToLocation(ctx, group.ID, loc.ID)
	if err != nil {
		t.Fatalf("first link: %v", err)
	}
	if !created {
		t.Fatal("first link should create a cross-reference")
	}
	created, err = res.LinkGroupToLocation(ctx, group.ID, loc.ID)
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if created {
		t.Fatal("second link should reuse the existing cross-reference")
	}
}

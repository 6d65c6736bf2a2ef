package importer

import (
	"context"
	"testing"
	"time"

	"hatcherycore/internal/core"
	"hatcherycore/internal/infra/persistence/memory"
	"hatcherycore/pkg/domain"
)

// fixture seeds a memory store with the reference data every engine test
// needs: one event, the Miramichi river with its stock and a catalogued
// site, the Fall collection, and the fixed codes plus mark "A".
type fixture struct {
	store *memory.Store
	event domain.Event
	river domain.River
	site  domain.ReleaseSite
	stock domain.Stock
	coll  domain.Collection
	markA domain.ReferenceCode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store)

	if err := svc.SeedReferenceCodes(ctx, []string{"A", "B"}); err != nil {
		t.Fatalf("seed reference codes: %v", err)
	}

	f := &fixture{store: store}
	var err error
	f.event, _, err = svc.CreateEvent(ctx, domain.Event{
		Name:    "Electrofishing 2019",
		StartAt: time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	f.river, _, err = svc.CreateRiver(ctx, domain.River{Name: "Miramichi"})
	if err != nil {
		t.Fatalf("create river: %v", err)
	}
	f.stock, _, err = svc.CreateStock(ctx, domain.Stock{Name: "Miramichi"})
	if err != nil {
		t.Fatalf("create stock: %v", err)
	}
	f.coll, _, err = svc.CreateCollection(ctx, domain.Collection{Name: "Fall", Abbrev: "F"})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	f.site, _, err = svc.CreateReleaseSite(ctx, domain.ReleaseSite{Name: "Juniper", RiverID: f.river.ID})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	if err := store.View(ctx, func(v domain.TransactionView) error {
		for _, rc := range v.ListReferenceCodes() {
			if rc.Kind == domain.CodeMark && rc.Name == "A" {
				f.markA = rc
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("load mark code: %v", err)
	}
	if f.markA.ID == "" {
		t.Fatal("mark code A was not seeded")
	}
	return f
}

func (f *fixture) catalog(t *testing.T) ReferenceCatalog {
	t.Helper()
	cat, err := BuildCatalog(context.Background(), f.store)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func (f *fixture) resolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(f.store, f.event, defaultSpecies, f.catalog(t))
}

package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hatcherycore/internal/core"
	"hatcherycore/internal/infra/persistence/memory"
)

func TestBuildCatalogRequiresFixedCodes(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := BuildCatalog(context.Background(), store)
	if err == nil {
		t.Fatal("an unseeded store must fail catalog construction")
	}
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %T: %v", err, err)
	}
	if !strings.Contains(se.Error(), core.EnvCodeTemperature) {
		t.Fatalf("error should name the missing code: %v", se)
	}
}

func TestCollectionByLabel(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog(t)

	for _, label := range []string{"F", "f", "Fall", "fall", " Fall "} {
		coll, err := cat.CollectionByLabel(label)
		if err != nil {
			t.Fatalf("CollectionByLabel(%q): %v", label, err)
		}
		if coll.ID != f.coll.ID {
			t.Fatalf("CollectionByLabel(%q) resolved the wrong collection", label)
		}
	}

	_, err := cat.CollectionByLabel("SW")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("unknown label should be NotFoundError, got %v", err)
	}
}

func TestStockAndRiverLookupCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog(t)

	if _, err := cat.StockByName("miramichi"); err != nil {
		t.Fatalf("StockByName: %v", err)
	}
	if _, err := cat.RiverByName("MIRAMICHI"); err != nil {
		t.Fatalf("RiverByName: %v", err)
	}
	if _, err := cat.SiteByName("juniper", f.river.ID); err != nil {
		t.Fatalf("SiteByName: %v", err)
	}
	if _, err := cat.SiteByName("juniper", "other-river"); err == nil {
		t.Fatal("site lookup must respect the river constraint")
	}
}

func TestAuditLog(t *testing.T) {
	log := &Log{}
	log.Warnf("row %d: site %q not catalogued", 4, "Mystery Pool")
	log.RowFail(Row{Index: 7, columns: []string{"River"}, cells: map[string]string{"River": "Nowhere"}}, errors.New("stock \"Nowhere\" not found"))
	log.Summary(8, 6, 9)

	out := log.String()
	for _, want := range []string{
		"Warning: row 4",
		"Error parsing row 7:",
		"River=Nowhere",
		"8 of 9 rows parsed",
		"6 of 9 rows entered",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
	if log.Warnings() != 1 || log.Failures() != 1 {
		t.Fatalf("counters = %d warnings %d failures, want 1 and 1", log.Warnings(), log.Failures())
	}
}

func TestConfigByVariant(t *testing.T) {
	for _, name := range []string{"mactaquac-electrofishing", "coldbrook-electrofishing", "tank-movement"} {
		cfg, err := ConfigByVariant(name)
		if err != nil {
			t.Fatalf("ConfigByVariant(%q): %v", name, err)
		}
		if cfg.Variant != name {
			t.Fatalf("variant name = %q, want %q", cfg.Variant, name)
		}
		for _, f := range cfg.Mandatory {
			if cfg.Header(f) == "" {
				t.Fatalf("%s: mandatory field %s has no header", name, f)
			}
		}
	}
	if _, err := ConfigByVariant("unknown"); err == nil {
		t.Fatal("unknown variant should error")
	}
}

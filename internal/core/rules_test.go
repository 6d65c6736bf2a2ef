package core

import (
	"context"
	"testing"

	"hatcherycore/internal/infra/persistence/memory"
	"hatcherycore/pkg/domain"
)

func TestContainerCohortRuleWarns(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ctx := context.Background()

	var event domain.Event
	var container domain.Container
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		event, err = tx.CreateEvent(domain.Event{Name: "ef"})
		if err != nil {
			return err
		}
		container, err = tx.CreateContainer(domain.Container{Name: "5"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	place := func(stockID string) (domain.Result, error) {
		return store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			g, err := tx.CreateGroup(domain.Group{StockID: stockID, CollectionID: "c1", Year: 2019, Valid: true})
			if err != nil {
				return err
			}
			link, err := tx.CreateContainerLink(domain.ContainerLink{EventID: event.ID, ContainerID: container.ID})
			if err != nil {
				return err
			}
			_, err = tx.CreateCrossRef(domain.CrossRef{
				EventID:         event.ID,
				GroupID:         &g.ID,
				ContainerLinkID: &link.ID,
				Valid:           true,
			})
			return err
		})
	}

	res, err := place("s1")
	if err != nil {
		t.Fatalf("first placement: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("first placement should be clean, got %+v", res.Violations)
	}

	res, err = place("s2")
	if err != nil {
		t.Fatalf("second placement should warn, not block: %v", err)
	}
	warned := false
	for _, v := range res.Violations {
		if v.Rule == "container_cohort" && v.Severity == domain.SeverityWarn {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a container_cohort warning, got %+v", res.Violations)
	}
}

func TestGroupIdentityRuleScopedToEvent(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ctx := context.Background()

	cohort := func(eventID string) error {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			g, cerr := tx.CreateGroup(domain.Group{StockID: "s1", CollectionID: "c1", Year: 2019, Valid: true})
			if cerr != nil {
				return cerr
			}
			_, cerr = tx.CreateCrossRef(domain.CrossRef{EventID: eventID, GroupID: &g.ID, Valid: true})
			return cerr
		})
		return err
	}

	if err := cohort("ev1"); err != nil {
		t.Fatalf("first event cohort: %v", err)
	}
	if err := cohort("ev2"); err != nil {
		t.Fatalf("same identity under a different event must be allowed: %v", err)
	}
	if err := cohort("ev1"); err == nil {
		t.Fatal("duplicate identity under one event must be blocked")
	}
}

func TestSeedReferenceCodesIdempotent(t *testing.T) {
	store := memory.NewStore(nil)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.SeedReferenceCodes(ctx, []string{"A"}); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := svc.SeedReferenceCodes(ctx, []string{"A", "B"}); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	counts := map[domain.CodeKind]int{}
	if err := store.View(ctx, func(v domain.TransactionView) error {
		for _, rc := range v.ListReferenceCodes() {
			counts[rc.Kind]++
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if counts[domain.CodeMark] != 2 {
		t.Fatalf("mark codes = %d, want 2", counts[domain.CodeMark])
	}
	if counts[domain.CodeEnv] != 3 || counts[domain.CodeRole] != 2 || counts[domain.CodeCount] != 3 {
		t.Fatalf("fixed codes duplicated: %+v", counts)
	}
}

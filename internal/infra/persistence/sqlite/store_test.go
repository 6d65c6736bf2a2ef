package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"hatcherycore/pkg/domain"
)

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hatchery.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, cerr := tx.CreateRiver(domain.River{Name: "Miramichi"}); cerr != nil {
			return cerr
		}
		_, cerr := tx.CreateContainer(domain.Container{Name: "5", Kind: "tank"})
		return cerr
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	if err := reopened.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListRivers()) != 1 {
			t.Fatalf("reopened store holds %d rivers, want 1", len(v.ListRivers()))
		}
		if _, ok := v.FindContainerByName("5"); !ok {
			t.Fatal("container 5 missing after reopen")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hatchery.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateContainer(domain.Container{Name: "5"})
		return cerr
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateContainer(domain.Container{Name: "5"})
		return cerr
	}); err == nil {
		t.Fatal("duplicate container name must conflict")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if err := reopened.View(ctx, func(v domain.TransactionView) error {
		if got := len(v.ListContainers()); got != 1 {
			t.Fatalf("reopened store holds %d containers, want 1", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "imports/run1/sheet.csv", strings.NewReader("River,Year\n"), PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"success": "true"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 11 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	// Create-only: a second put on the same key must fail.
	if _, err := store.Put(ctx, "imports/run1/sheet.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("second put on the same key should fail")
	}

	got, rc, err := store.Get(ctx, "imports/run1/sheet.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "River,Year\n" {
		t.Fatalf("body = %q", body)
	}
	if got.ContentType != "text/csv" || got.Metadata["success"] != "true" {
		t.Fatalf("metadata lost: %+v", got)
	}

	if _, err := store.Head(ctx, "imports/run1/sheet.csv"); err != nil {
		t.Fatalf("head: %v", err)
	}
	if _, err := store.Head(ctx, "imports/run1/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("head missing: %v, want ErrNotFound", err)
	}

	if _, err := store.Put(ctx, "imports/run2/sheet.csv", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("put run2: %v", err)
	}
	infos, err := store.List(ctx, "imports/run1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "imports/run1/sheet.csv" {
		t.Fatalf("list(imports/run1/) = %+v", infos)
	}

	deleted, err := store.Delete(ctx, "imports/run1/sheet.csv")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "imports/run1/sheet.csv")
	if err != nil || deleted {
		t.Fatalf("second delete should be a no-op: %v %v", deleted, err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	testStore(t, store)
}

func TestSanitizeKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "../escape", "/abs", "a/../../b"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", bad)
		}
	}
	clean, err := sanitizeKey("imports/run1/sheet.csv")
	if err != nil || clean != "imports/run1/sheet.csv" {
		t.Fatalf("sanitizeKey = %q, %v", clean, err)
	}
}

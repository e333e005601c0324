package storage

import (
	"context"
	"errors"
	"testing"
)

func TestDocumentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	doc, err := store.FindDocument(ctx, "r1")
	if err != nil {
		t.Fatalf("FindDocument: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document for unknown room, got %+v", doc)
	}

	if err := store.UpsertDocument(ctx, "r1", "hello"); err != nil {
		t.Fatalf("UpsertDocument insert: %v", err)
	}
	doc, err = store.FindDocument(ctx, "r1")
	if err != nil {
		t.Fatalf("FindDocument after insert: %v", err)
	}
	if doc == nil || doc.Code != "hello" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	first := doc.UpdatedAt

	if err := store.UpsertDocument(ctx, "r1", "hello world"); err != nil {
		t.Fatalf("UpsertDocument update: %v", err)
	}
	doc, err = store.FindDocument(ctx, "r1")
	if err != nil {
		t.Fatalf("FindDocument after update: %v", err)
	}
	if doc == nil || doc.Code != "hello world" {
		t.Fatalf("expected updated text, got %+v", doc)
	}
	if doc.UpdatedAt.Before(first) {
		t.Fatalf("expected timestamp to advance: %v -> %v", first, doc.UpdatedAt)
	}
}

func TestVersionLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	firstID, err := store.InsertVersion(ctx, "r1", "v1", "alice")
	if err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	if _, err := store.InsertVersion(ctx, "r1", "v2", ""); err != nil {
		t.Fatalf("InsertVersion second: %v", err)
	}
	if _, err := store.InsertVersion(ctx, "other", "x", ""); err != nil {
		t.Fatalf("InsertVersion other room: %v", err)
	}

	versions, err := store.ListVersions(ctx, "r1")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].CreatedAt.Before(versions[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", versions[0].CreatedAt, versions[1].CreatedAt)
	}

	version, err := store.GetVersion(ctx, firstID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if version.Code != "v1" || version.SavedBy != "alice" {
		t.Fatalf("unexpected version: %+v", version)
	}

	if _, err := store.GetVersion(ctx, "nope"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"geneticdfa/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "geneticdfa.db")

	store, err := NewStore("sqlite", dbPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(store)
	})
	exerciseStore(t, store)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); err == nil {
		t.Fatal("expected error before init")
	}
}

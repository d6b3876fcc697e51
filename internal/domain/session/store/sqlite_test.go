package store

import (
	"context"
	"testing"

	"autopost-server-go/internal/platform/storage"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	db, err := storage.OpenTestDatabase()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	s, err := NewSQLite(db)
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	return s
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	rec := Record{Username: "sqlite-user", State: []byte(`{"token":"s"}`)}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get(ctx, "sqlite-user")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got.State) != `{"token":"s"}` {
		t.Fatalf("unexpected state: %s", got.State)
	}
	if got.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version = %d", got.SchemaVersion)
	}

	// Overwrite keeps a single row per username.
	rec.State = []byte(`{"token":"s2"}`)
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("second Put error: %v", err)
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected one record, got %v", names)
	}

	got, err = s.Get(ctx, "sqlite-user")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got.State) != `{"token":"s2"}` {
		t.Fatalf("state not replaced: %s", got.State)
	}

	if err := s.Delete(ctx, "sqlite-user"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "sqlite-user"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreRequiresDB(t *testing.T) {
	if _, err := NewSQLite(nil); err == nil {
		t.Fatal("expected error without database handle")
	}
}

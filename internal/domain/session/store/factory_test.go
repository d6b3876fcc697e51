package store

import (
	"testing"

	"autopost-server-go/internal/platform/storage"
)

func TestFactoryDefaultsToMemory(t *testing.T) {
	s, err := New(Config{}, Dependencies{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestFactorySQLiteNeedsHandle(t *testing.T) {
	if _, err := New(Config{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatal("expected error without database handle")
	}

	db, err := storage.OpenTestDatabase()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	s, err := New(Config{Driver: DriverSQLite}, Dependencies{SQLiteDB: db})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := s.(*sqliteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
}

func TestFactoryRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "etcd"}, Dependencies{}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	items map[string]Record
	mutex sync.RWMutex
}

// NewMemory builds an in-memory session store.
func NewMemory() Store {
	return &memoryStore{
		items: make(map[string]Record),
	}
}

func (s *memoryStore) Put(_ context.Context, rec Record) error {
	if rec.Username == "" {
		return fmt.Errorf("username required")
	}
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = SchemaVersion
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.mutex.Lock()
	s.items[rec.Username] = rec
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, username string) (Record, error) {
	s.mutex.RLock()
	rec, ok := s.items[username]
	s.mutex.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.SchemaVersion != SchemaVersion {
		s.mutex.Lock()
		delete(s.items, username)
		s.mutex.Unlock()
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) Delete(_ context.Context, username string) error {
	s.mutex.Lock()
	delete(s.items, username)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	return names, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

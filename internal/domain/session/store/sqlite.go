package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"autopost-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a SQLite-backed session store.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Put(ctx context.Context, rec Record) error {
	if rec.Username == "" {
		return fmt.Errorf("username required")
	}
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = SchemaVersion
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", rec.Username).Delete(&storage.SessionBlob{}).Error; err != nil {
			return err
		}
		row := &storage.SessionBlob{
			Username:      rec.Username,
			State:         datatypes.JSON(rec.State),
			SchemaVersion: rec.SchemaVersion,
			UpdatedAt:     rec.UpdatedAt,
		}
		return tx.Create(row).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, username string) (Record, error) {
	var row storage.SessionBlob
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if row.SchemaVersion != SchemaVersion {
		_ = s.Delete(ctx, username)
		return Record{}, ErrNotFound
	}
	return Record{
		Username:      row.Username,
		State:         []byte(row.State),
		SchemaVersion: row.SchemaVersion,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (s *sqliteStore) Delete(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Where("username = ?", username).Delete(&storage.SessionBlob{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var rows []storage.SessionBlob
	if err := s.db.WithContext(ctx).Select("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Username)
	}
	return names, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

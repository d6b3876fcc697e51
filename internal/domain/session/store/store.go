package store

import (
	"context"
	"errors"
	"time"
)

// SchemaVersion is the current layout of serialized session state. Records
// with an older version are treated as unusable and dropped on read.
const SchemaVersion = 1

// ErrNotFound reports that no record exists for the username.
var ErrNotFound = errors.New("session record not found")

// Record is one persisted session blob keyed by account username.
type Record struct {
	Username      string    `json:"username"`
	State         []byte    `json:"state"`
	SchemaVersion int       `json:"schema_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store defines the behaviour required by the session manager.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, username string) (Record, error)
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

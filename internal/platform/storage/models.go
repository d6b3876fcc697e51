package storage

import (
	"time"

	"gorm.io/datatypes"
)

// AccountCredential stores one posting account and its schedule.
type AccountCredential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"uniqueIndex;not null" json:"username"`
	Password        string    `gorm:"not null" json:"-"`
	StartTime       string    `gorm:"not null" json:"start_time"` // "HH:MM" 24-hour
	IntervalMinutes int       `gorm:"not null" json:"interval_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (AccountCredential) TableName() string {
	return "account_credentials"
}

// SessionBlob holds the serialized platform session for one account.
// State is opaque to this service and must round-trip byte-for-byte.
type SessionBlob struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Username      string         `gorm:"uniqueIndex;not null" json:"username"`
	State         datatypes.JSON `gorm:"not null" json:"state"`
	SchemaVersion int            `gorm:"default:1" json:"schema_version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (SessionBlob) TableName() string {
	return "session_blobs"
}

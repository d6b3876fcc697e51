package account

import (
	"fmt"

	"gorm.io/gorm"

	"autopost-server-go/internal/domain/schedule"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/storage"
)

// Repository persists posting credentials in the relational store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert replaces the stored credential for the username, creating it if
// absent. Replace-then-create inside a transaction keeps the unique index
// on username authoritative.
func (r *Repository) Upsert(cred Credential) error {
	const op errors.Op = "account.Upsert"
	if cred.Username == "" {
		return errors.New(errors.KindConfig, op, "username is required")
	}
	if cred.IntervalMinutes <= 0 {
		return errors.New(errors.KindSchedule, op, "interval must be positive")
	}
	row := storage.AccountCredential{
		Username:        cred.Username,
		Password:        cred.Password,
		StartTime:       cred.StartTime.String(),
		IntervalMinutes: cred.IntervalMinutes,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", cred.Username).
			Delete(&storage.AccountCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return errors.Wrap(err, errors.KindStorage, op, "save credential")
	}
	return nil
}

// Get returns the credential for the username.
func (r *Repository) Get(username string) (Credential, error) {
	const op errors.Op = "account.Get"
	var row storage.AccountCredential
	err := r.db.Where("username = ?", username).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return Credential{}, errors.New(errors.KindStorage, op,
			fmt.Sprintf("no credential for %q", username))
	}
	if err != nil {
		return Credential{}, errors.Wrap(err, errors.KindStorage, op, "load credential")
	}
	return fromRow(row)
}

// List returns every stored credential in insertion order.
func (r *Repository) List() ([]Credential, error) {
	const op errors.Op = "account.List"
	var rows []storage.AccountCredential
	if err := r.db.Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, op, "list credentials")
	}
	creds := make([]Credential, 0, len(rows))
	for _, row := range rows {
		cred, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// Delete removes the credential for the username. Missing rows are not an
// error.
func (r *Repository) Delete(username string) error {
	const op errors.Op = "account.Delete"
	err := r.db.Where("username = ?", username).
		Delete(&storage.AccountCredential{}).Error
	if err != nil {
		return errors.Wrap(err, errors.KindStorage, op, "delete credential")
	}
	return nil
}

func fromRow(row storage.AccountCredential) (Credential, error) {
	const op errors.Op = "account.fromRow"
	start, err := schedule.ParseTimeOfDay(row.StartTime)
	if err != nil {
		return Credential{}, errors.Wrap(err, errors.KindSchedule, op,
			fmt.Sprintf("stored start time for %q", row.Username))
	}
	return Credential{
		Username:        row.Username,
		Password:        row.Password,
		StartTime:       start,
		IntervalMinutes: row.IntervalMinutes,
	}, nil
}

package idempotency

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateRecord inserts an in-progress ledger row. The composite unique
// index on (scope, path, method, key) makes a concurrent second insert
// fail, which the caller treats as "someone else got here first".
func (d *Database) CreateRecord(record *Record) error {
	return d.db.Create(record).Error
}

// GetRecord retrieves the ledger row for a request identity, or nil.
func (d *Database) GetRecord(scope, path, method, key string) (*Record, error) {
	var record Record
	err := d.db.
		Where("scope = ? AND path = ? AND method = ? AND idempotency_key = ?", scope, path, method, key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// CompleteRecord persists the handler's response onto the row.
func (d *Database) CompleteRecord(record *Record, body []byte, code int) error {
	record.ResponseBody = body
	record.ResponseCode = code
	return d.db.Save(record).Error
}

// ReclaimRecord takes over a stale in-progress row. The conditional
// update is the race arbiter: exactly one concurrent caller observes
// RowsAffected == 1 and becomes the new owner.
func (d *Database) ReclaimRecord(record *Record, requestHash string, staleBefore, expiresAt time.Time) (bool, error) {
	res := d.db.Model(&Record{}).
		Where("id = ? AND response_code = 0 AND updated_at <= ?", record.ID, staleBefore).
		Updates(map[string]interface{}{
			"request_hash": requestHash,
			"expires_at":   expiresAt,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired removes ledger rows past their expiry. Called
// periodically by the reconciliation processor.
func (d *Database) DeleteExpired(now time.Time) (int64, error) {
	res := d.db.Unscoped().Where("expires_at <= ?", now).Delete(&Record{})
	return res.RowsAffected, res.Error
}

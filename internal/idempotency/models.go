package idempotency

import (
	"time"

	"gorm.io/gorm"
)

// Record is one row of the idempotency ledger. The identity of a request
// is the (scope, path, method, key) tuple; the composite unique index is
// what makes the first insert win under concurrency.
//
// ResponseCode zero means the guarded handler has not completed yet.
type Record struct {
	gorm.Model
	IdempotencyKey string    `gorm:"size:128;uniqueIndex:idx_ledger_identity,priority:4" json:"idempotency_key"`
	Scope          string    `gorm:"size:64;uniqueIndex:idx_ledger_identity,priority:1" json:"scope"`
	Path           string    `gorm:"size:255;uniqueIndex:idx_ledger_identity,priority:2" json:"path"`
	Method         string    `gorm:"size:10;uniqueIndex:idx_ledger_identity,priority:3" json:"method"`
	RequestHash    string    `gorm:"size:64" json:"request_hash"`
	ResponseBody   []byte    `json:"-"`
	ResponseCode   int       `json:"response_code"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`
}

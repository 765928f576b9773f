package migrations

import (
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/idempotency"
)

// TightenLedgerIdentity migrates the idempotency ledger to the
// composite (scope, path, method, key) identity. Earlier deployments
// keyed the ledger on the bare idempotency key, which let two actors
// collide on the same client-chosen token.
func TightenLedgerIdentity(db *gorm.DB) error {
	if err := db.AutoMigrate(&idempotency.Record{}); err != nil {
		return err
	}

	// Drop the legacy single-column unique index if it survived from an
	// old schema; the composite index from the model tags replaces it.
	migrator := db.Migrator()
	if migrator.HasIndex(&idempotency.Record{}, "idx_records_idempotency_key") {
		if err := migrator.DropIndex(&idempotency.Record{}, "idx_records_idempotency_key"); err != nil {
			return err
		}
	}

	return nil
}

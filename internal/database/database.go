package database

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/database/migrations"
	"github.com/avthrift/payments-api/internal/inventory"
	"github.com/avthrift/payments-api/internal/payments"
	"github.com/avthrift/payments-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.TightenLedgerIdentity(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.OrderItem{},
		&types.OrderStatusEvent{},
		&payments.PaymentIntent{},
		&inventory.StockReservation{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

var testDBCounter int64

// NewTestDatabase opens a uniquely named shared-cache in-memory
// database with the full schema, for tests. The shared cache keeps the
// connection pool pointed at one database; the unique name isolates
// tests from each other.
func NewTestDatabase() (*gorm.DB, error) {
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	return NewDatabase(dsn)
}

package payments

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertIntent creates or updates a PaymentIntent keyed by reference.
// Every (re)upsert resets the status to initialized ahead of a gateway
// call; the webhook event record from any earlier attempt is preserved.
func (d *Database) UpsertIntent(reference, orderID string, amount decimal.Decimal, currency, provider, authorizationURL, accessCode string, metadata types.JSONMap) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("reference = ?", reference).First(&intent).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		intent.Reference = reference
		intent.OrderID = orderID
		intent.Amount = amount
		intent.Currency = currency
		intent.Provider = provider
		intent.AuthorizationURL = authorizationURL
		intent.AccessCode = accessCode
		intent.Status = StatusInitialized
		intent.Metadata = metadata

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&intent).Error
		}
		return tx.Save(&intent).Error
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetIntentByReference returns the intent for a gateway reference, or nil.
func (d *Database) GetIntentByReference(reference string) (*PaymentIntent, error) {
	if reference == "" {
		return nil, nil
	}
	var intent PaymentIntent
	if err := d.db.Where("reference = ?", reference).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (d *Database) UpdateIntent(intent *PaymentIntent) error {
	return d.db.Save(intent).Error
}

// ListIntentsForOrder returns an order's intents, newest first,
// optionally filtered by status.
func (d *Database) ListIntentsForOrder(orderID, status string) ([]PaymentIntent, error) {
	q := d.db.Where("order_id = ?", orderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var intents []PaymentIntent
	err := q.Order("id DESC").Find(&intents).Error
	return intents, err
}

// ListRecentFailedIntents returns the most recent failed intents for
// operator review.
func (d *Database) ListRecentFailedIntents(limit int) ([]PaymentIntent, error) {
	if limit <= 0 {
		limit = 20
	}
	var intents []PaymentIntent
	err := d.db.Where("status = ?", StatusFailed).
		Order("created_at DESC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

// ListStaleInitializedIntents returns intents that have sat in
// initialized or processing since before the cutoff. The reconciliation
// processor re-verifies these against the gateway.
func (d *Database) ListStaleInitializedIntents(cutoff time.Time, limit int) ([]PaymentIntent, error) {
	var intents []PaymentIntent
	err := d.db.
		Where("status IN ?", []string{StatusInitialized, StatusProcessing}).
		Where("updated_at <= ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

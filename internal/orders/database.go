package orders

import (
	"errors"

	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Preload("Items").Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderByOrderIDAndUserID(orderID, userID string) (*types.Order, error) {
	var order types.Order
	err := d.db.Preload("Items").
		Where("order_id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// TransitionStatus moves an order from one status to another with a
// compare-and-set at the storage layer. Returns false when the order was
// no longer in the expected source status, which callers treat as a lost
// race rather than an error.
func (d *Database) TransitionStatus(orderID, from, to string) (bool, error) {
	res := d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *Database) UpdateOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) CreateStatusEvent(event *types.OrderStatusEvent) error {
	return d.db.Create(event).Error
}

// ListStatusEvents returns the order's audit trail, newest first.
func (d *Database) ListStatusEvents(orderID string) ([]types.OrderStatusEvent, error) {
	var events []types.OrderStatusEvent
	err := d.db.Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&events).Error
	return events, err
}

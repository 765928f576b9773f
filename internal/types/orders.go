package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. Paid and cancelled are terminal.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// JSONMap is a free-form JSON object stored as a TEXT column.
type JSONMap map[string]interface{}

// GormDataType tells gorm's migrator to create a TEXT column for JSONMap
// fields; the type cannot be inferred from Value(), which returns nil for
// a nil map.
func (JSONMap) GormDataType() string {
	return "text"
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for JSONMap")
	}
}

type Order struct {
	gorm.Model      `json:"-"`
	OrderID         string      `gorm:"uniqueIndex" json:"order_id"`
	UserID          string      `gorm:"index" json:"user_id"`
	Email           string      `json:"email"`
	Status          string      `gorm:"index" json:"status"` // pending, paid, cancelled
	ShippingAddress JSONMap     `json:"shipping_address,omitempty"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	gorm.Model   `json:"-"`
	OrderID      string          `gorm:"index" json:"order_id"`
	ProductTitle string          `json:"product_title"`
	VariantSKU   string          `json:"variant_sku"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric" json:"unit_price"`
}

// LineTotal returns unit price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// ItemsTotal sums line totals across the order's items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderStatusEvent is an immutable audit record of a status transition.
// Rows are only ever appended, newest first on read.
type OrderStatusEvent struct {
	gorm.Model `json:"-"`
	OrderID    string    `gorm:"index" json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

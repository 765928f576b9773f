package payments

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/types"
)

// PaymentIntent statuses. Succeeded is the single terminal success
// state: once there, further webhook deliveries are state no-ops.
const (
	StatusInitialized = "initialized"
	StatusProcessing  = "processing"
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// ProviderPaystack is the only supported gateway.
const ProviderPaystack = "paystack"

// metadataWebhookHashKey stores the digest of the last processed webhook
// payload for duplicate-delivery detection.
const metadataWebhookHashKey = "last_webhook_hash"

// PaymentIntent tracks one payment attempt for an order via the
// gateway, keyed by the globally unique reference. Intents are upserted
// at initialization, mutated only by finalization afterward, and never
// deleted.
type PaymentIntent struct {
	gorm.Model       `json:"-"`
	Reference        string          `gorm:"size:64;uniqueIndex" json:"reference"`
	OrderID          string          `gorm:"index" json:"order_id"`
	Amount           decimal.Decimal `gorm:"type:numeric;check:amount >= 0" json:"amount"`
	Currency         string          `gorm:"size:8" json:"currency"`
	Status           string          `gorm:"size:16;index" json:"status"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	AccessCode       string          `gorm:"size:64" json:"access_code,omitempty"`
	Provider         string          `gorm:"size:32" json:"provider"`
	Metadata         types.JSONMap   `json:"metadata,omitempty"`
	WebhookEvent     types.JSONMap   `json:"webhook_event,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// currencyMultipliers maps a currency code to its minor-unit multiplier.
// All currently supported currencies use two decimal places; the map
// exists so zero-decimal currencies get an explicit entry rather than a
// silent default.
var currencyMultipliers = map[string]int64{
	"NGN": 100,
	"USD": 100,
	"GHS": 100,
	"ZAR": 100,
	"KES": 100,
	"XOF": 100,
}

const defaultMultiplier = 100

// MinorUnits converts a major-unit decimal amount to integer minor
// units (e.g. 50.00 NGN -> 5000 kobo) for exact comparison against
// gateway-reported amounts.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	multiplier := int64(defaultMultiplier)
	if m, ok := currencyMultipliers[normalizeCurrency(currency)]; ok {
		multiplier = m
	}
	return amount.Mul(decimal.NewFromInt(multiplier)).IntPart()
}

func normalizeCurrency(currency string) string {
	if currency == "" {
		return "NGN"
	}
	return strings.ToUpper(currency)
}

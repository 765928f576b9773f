package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/types"
)

// OrderService is the order collaborator the finalization coordinator
// drives. Implemented by the orders package.
type OrderService interface {
	GetOrder(orderID string) (*types.Order, error)
	Pay(order *types.Order) (*types.Order, error)
}

// ErrorReporter is the external error-capture port (Sentry-shaped).
// A no-op implementation is used when none is configured.
type ErrorReporter interface {
	CaptureMessage(msg string)
	CaptureError(err error)
}

type noopReporter struct{}

func (noopReporter) CaptureMessage(string) {}
func (noopReporter) CaptureError(error)    {}

// Service coordinates payment intents, the gateway, and order
// finalization.
type Service struct {
	db       *Database
	gateway  *GatewayClient
	orders   OrderService
	reporter ErrorReporter
	logger   zerolog.Logger
}

// NewService creates a payments service. reporter may be nil, in which
// case error capture is a no-op.
func NewService(gormDB *gorm.DB, gateway *GatewayClient, orders OrderService, reporter ErrorReporter) *Service {
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &Service{
		db:       NewDatabase(gormDB),
		gateway:  gateway,
		orders:   orders,
		reporter: reporter,
		logger:   log.With().Str("service", "payments").Logger(),
	}
}

// UpsertIntent creates or updates the intent for a reference, resetting
// its status to initialized.
func (s *Service) UpsertIntent(order *types.Order, reference string, amount decimal.Decimal, currency, provider string, metadata types.JSONMap) (*PaymentIntent, error) {
	if provider == "" {
		provider = ProviderPaystack
	}
	return s.db.UpsertIntent(reference, order.OrderID, amount, normalizeCurrency(currency), provider, "", "", metadata)
}

// InitializeTransaction initializes a Paystack transaction for the
// order and persists the resulting intent.
func (s *Service) InitializeTransaction(ctx context.Context, order *types.Order, amount decimal.Decimal, currency, reference string, metadata types.JSONMap) (*PaymentIntent, error) {
	txnCurrency := normalizeCurrency(currency)

	resp, err := s.gateway.Initialize(ctx, InitializeRequest{
		Email:     order.Email,
		Amount:    MinorUnits(amount, txnCurrency),
		Currency:  txnCurrency,
		Reference: reference,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.db.UpsertIntent(
		reference,
		order.OrderID,
		amount,
		txnCurrency,
		ProviderPaystack,
		resp.Data.AuthorizationURL,
		resp.Data.AccessCode,
		metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to persist payment intent: %w", err)
	}
	return intent, nil
}

// VerifyTransaction fetches the gateway's view of a transaction.
func (s *Service) VerifyTransaction(ctx context.Context, reference string) (*GatewayResponse, error) {
	return s.gateway.Verify(ctx, reference)
}

func (s *Service) IntentByReference(reference string) (*PaymentIntent, error) {
	return s.db.GetIntentByReference(reference)
}

func (s *Service) IntentsForOrder(orderID, status string) ([]PaymentIntent, error) {
	return s.db.ListIntentsForOrder(orderID, status)
}

func (s *Service) RecentFailedIntents(limit int) ([]PaymentIntent, error) {
	return s.db.ListRecentFailedIntents(limit)
}

// RecordWebhookDigest stores the digest of a raw webhook payload on the
// intent and reports whether this exact payload was seen before.
// Tracking failures are logged and treated as "not a duplicate" so they
// never block processing.
func (s *Service) RecordWebhookDigest(intent *PaymentIntent, rawBody []byte) bool {
	sum := sha256.Sum256(rawBody)
	digest := hex.EncodeToString(sum[:])

	if intent.Metadata != nil {
		if prev, ok := intent.Metadata[metadataWebhookHashKey].(string); ok && prev == digest {
			return true
		}
	}

	if intent.Metadata == nil {
		intent.Metadata = types.JSONMap{}
	}
	intent.Metadata[metadataWebhookHashKey] = digest
	if err := s.db.UpdateIntent(intent); err != nil {
		s.logger.Error().Err(err).Str("reference", intent.Reference).Msg("failed to record webhook digest")
	}
	return false
}

// Finalize marks the intent succeeded and pays the order when the
// gateway-reported amount reconciles with the intent. It never lets an
// error escape: a bad event or a failing downstream step is logged and
// captured, and the intent is left in a durably consistent state.
//
// The succeeded status is persisted before the order transition so a
// crash mid-fulfillment leaves the intent marked succeeded for manual
// reconciliation rather than silently unpaid.
func (s *Service) Finalize(intent *PaymentIntent, event types.JSONMap) {
	logger := s.logger.With().
		Str("reference", intent.Reference).
		Str("order_id", intent.OrderID).
		Logger()

	if intent.Status == StatusSucceeded {
		return
	}

	reported := eventAmount(event)
	expected := MinorUnits(intent.Amount, intent.Currency)
	if reported != 0 && expected != 0 && reported != expected {
		logger.Error().
			Int64("expected_minor", expected).
			Int64("reported_minor", reported).
			Msg("paystack amount mismatch")
		s.reporter.CaptureMessage("paystack_amount_mismatch")

		intent.WebhookEvent = event
		intent.Status = StatusFailed
		if err := s.db.UpdateIntent(intent); err != nil {
			logger.Error().Err(err).Msg("failed to persist failed intent")
			s.reporter.CaptureError(err)
		}
		return
	}

	intent.WebhookEvent = event
	intent.Status = StatusSucceeded
	if err := s.db.UpdateIntent(intent); err != nil {
		logger.Error().Err(err).Msg("failed to persist succeeded intent")
		s.reporter.CaptureError(err)
		return
	}

	order, err := s.orders.GetOrder(intent.OrderID)
	if err != nil || order == nil {
		logger.Error().Err(err).Msg("failed to load order for finalization")
		if err != nil {
			s.reporter.CaptureError(err)
		}
		return
	}
	if _, err := s.orders.Pay(order); err != nil {
		// The intent stays succeeded; fulfillment is reconciled manually.
		logger.Error().Err(err).Msg("failed to pay order after successful charge")
		s.reporter.CaptureError(err)
	}
}

// MarkFailed records a failed charge event on the intent.
func (s *Service) MarkFailed(intent *PaymentIntent, event types.JSONMap) {
	intent.WebhookEvent = event
	intent.Status = StatusFailed
	if err := s.db.UpdateIntent(intent); err != nil {
		s.logger.Error().Err(err).Str("reference", intent.Reference).Msg("failed to persist failed intent")
		s.reporter.CaptureError(err)
	}
}

// eventAmount extracts the gateway-reported minor-unit amount from a
// webhook event payload, or zero when absent or malformed.
func eventAmount(event types.JSONMap) int64 {
	data, ok := event["data"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := data["amount"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

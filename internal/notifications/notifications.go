// Package notifications implements the customer-facing notification
// collaborators. Delivery is best-effort by contract; callers log
// failures and move on.
package notifications

import (
	"github.com/rs/zerolog/log"

	"github.com/avthrift/payments-api/internal/types"
)

// EmailSender sends transactional email. The current implementation
// writes to the log; the SMTP integration lives behind this type.
type EmailSender struct {
	fromAddress string
}

func NewEmailSender(fromAddress string) *EmailSender {
	return &EmailSender{fromAddress: fromAddress}
}

// SendOrderPaidEmail notifies the customer that payment was received.
func (e *EmailSender) SendOrderPaidEmail(order *types.Order) error {
	log.Info().
		Str("component", "notifications").
		Str("order_id", order.OrderID).
		Str("to", order.Email).
		Str("from", e.fromAddress).
		Msg("order paid email queued")
	return nil
}

// InitiateReimbursement triggers the external reimbursement flow for a
// cancelled order. Only the notification hook is implemented; the
// refund itself is handled out of band.
func (e *EmailSender) InitiateReimbursement(order *types.Order) error {
	log.Info().
		Str("component", "notifications").
		Str("order_id", order.OrderID).
		Str("to", order.Email).
		Msg("reimbursement initiation notified")
	return nil
}

// LogReporter is an ErrorReporter that records captures in the log.
// Swap for a Sentry-backed implementation in production.
type LogReporter struct{}

func (LogReporter) CaptureMessage(msg string) {
	log.Error().Str("component", "error_reporter").Msg(msg)
}

func (LogReporter) CaptureError(err error) {
	log.Error().Str("component", "error_reporter").Err(err).Msg("captured error")
}

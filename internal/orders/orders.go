package orders

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/types"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderCancelled = errors.New("cannot pay a cancelled order")
	ErrOrderPaid      = errors.New("cannot cancel a paid order")
	ErrNotPending     = errors.New("order is not pending")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrInvalidAddress = errors.New("invalid shipping address")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Notifier delivers customer-facing notifications. Failures are logged
// and never block a state transition.
type Notifier interface {
	SendOrderPaidEmail(order *types.Order) error
}

// Inventory is the stock collaborator. Reservation commit and release
// are best-effort side effects of pay and cancel.
type Inventory interface {
	CommitReservation(orderID string) error
	ReleaseReservation(orderID string) error
}

// Refunds triggers the external reimbursement flow when a pending order
// is cancelled.
type Refunds interface {
	InitiateReimbursement(order *types.Order) error
}

// Service owns the order status state machine: pending -> paid and
// pending -> cancelled, both terminal. Every transition appends an audit
// event and fires best-effort side effects through the collaborator
// ports, each isolated so one failure cannot block another.
type Service struct {
	db        *Database
	notifier  Notifier
	inventory Inventory
	refunds   Refunds
}

func NewService(gormDB *gorm.DB, notifier Notifier, inventory Inventory, refunds Refunds) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		notifier:  notifier,
		inventory: inventory,
		refunds:   refunds,
	}
}

func (s *Service) GetOrder(orderID string) (*types.Order, error) {
	return s.db.GetOrder(orderID)
}

func (s *Service) GetOrderForUser(orderID, userID string) (*types.Order, error) {
	return s.db.GetOrderByOrderIDAndUserID(orderID, userID)
}

func (s *Service) CreateOrder(order *types.Order) error {
	order.Status = types.OrderStatusPending
	return s.db.CreateOrder(order)
}

func (s *Service) StatusEvents(orderID string) ([]types.OrderStatusEvent, error) {
	return s.db.ListStatusEvents(orderID)
}

// Pay transitions a pending order to paid. Already-paid orders are an
// idempotent no-op. Paying a cancelled order is rejected: a replayed
// success webhook must not resurrect an order the customer cancelled.
func (s *Service) Pay(order *types.Order) (*types.Order, error) {
	logger := log.With().
		Str("service", "orders").
		Str("order_id", order.OrderID).
		Logger()

	switch order.Status {
	case types.OrderStatusPaid:
		return order, nil
	case types.OrderStatusCancelled:
		return nil, ErrOrderCancelled
	}

	moved, err := s.db.TransitionStatus(order.OrderID, types.OrderStatusPending, types.OrderStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to transition order to paid: %w", err)
	}
	if !moved {
		// Lost the race; re-read and decide from the winner's state.
		current, err := s.db.GetOrder(order.OrderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrOrderNotFound
		}
		if current.Status == types.OrderStatusPaid {
			return current, nil
		}
		return nil, ErrOrderCancelled
	}
	order.Status = types.OrderStatusPaid

	s.appendStatusEvent(order.OrderID, types.OrderStatusPending, types.OrderStatusPaid, "payment confirmed")

	if s.notifier != nil {
		if err := s.notifier.SendOrderPaidEmail(order); err != nil {
			logger.Error().Err(err).Msg("failed to send order paid email")
		}
	}
	if s.inventory != nil {
		if err := s.inventory.CommitReservation(order.OrderID); err != nil {
			logger.Error().Err(err).Msg("failed to commit stock reservation")
		}
	}

	logger.Info().Msg("order paid")
	return order, nil
}

// Cancel transitions a pending order to cancelled. Already-cancelled
// orders are an idempotent no-op; cancelling a paid order is rejected.
func (s *Service) Cancel(order *types.Order) (*types.Order, error) {
	logger := log.With().
		Str("service", "orders").
		Str("order_id", order.OrderID).
		Logger()

	switch order.Status {
	case types.OrderStatusCancelled:
		return order, nil
	case types.OrderStatusPaid:
		return nil, ErrOrderPaid
	}

	moved, err := s.db.TransitionStatus(order.OrderID, types.OrderStatusPending, types.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to transition order to cancelled: %w", err)
	}
	if !moved {
		current, err := s.db.GetOrder(order.OrderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrOrderNotFound
		}
		if current.Status == types.OrderStatusCancelled {
			return current, nil
		}
		return nil, ErrOrderPaid
	}
	order.Status = types.OrderStatusCancelled

	s.appendStatusEvent(order.OrderID, types.OrderStatusPending, types.OrderStatusCancelled, "cancelled by request")

	if s.inventory != nil {
		if err := s.inventory.ReleaseReservation(order.OrderID); err != nil {
			logger.Error().Err(err).Msg("failed to release stock reservation")
		}
	}
	if s.refunds != nil {
		if err := s.refunds.InitiateReimbursement(order); err != nil {
			logger.Error().Err(err).Msg("failed to initiate reimbursement")
		}
	}

	logger.Info().Msg("order cancelled")
	return order, nil
}

// UpdateContact updates the order's email and shipping address. Only
// pending orders may be edited.
func (s *Service) UpdateContact(order *types.Order, email string, address types.JSONMap) (*types.Order, error) {
	if order.Status != types.OrderStatusPending {
		return nil, ErrNotPending
	}

	changed := false
	if email != "" {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if !emailPattern.MatchString(normalized) {
			return nil, ErrInvalidEmail
		}
		order.Email = normalized
		changed = true
	}
	if address != nil {
		cleaned, err := normalizeAddress(address)
		if err != nil {
			return nil, err
		}
		order.ShippingAddress = cleaned
		changed = true
	}
	if !changed {
		return order, nil
	}

	if err := s.db.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to update order contact: %w", err)
	}
	return order, nil
}

// appendStatusEvent records the transition in the audit trail. The event
// write must never block the transition itself.
func (s *Service) appendStatusEvent(orderID, from, to, reason string) {
	event := &types.OrderStatusEvent{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
	}
	if err := s.db.CreateStatusEvent(event); err != nil {
		log.Error().
			Err(err).
			Str("service", "orders").
			Str("order_id", orderID).
			Str("to_status", to).
			Msg("failed to append status event")
	}
}

func normalizeAddress(address types.JSONMap) (types.JSONMap, error) {
	required := []string{"recipient", "line1", "city", "country"}
	for _, field := range required {
		v, ok := address[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, ErrInvalidAddress
		}
	}
	cleaned := make(types.JSONMap, len(address))
	for k, v := range address {
		cleaned[k] = v
	}
	cleaned["country"] = strings.ToUpper(address["country"].(string))
	return cleaned, nil
}

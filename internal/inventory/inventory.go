// Package inventory is the stock collaborator consumed by the order
// state machine. Reservations are tracked durably; commit and release
// are called as best-effort side effects of pay and cancel, and a
// failure here is logged by the caller, never propagated.
package inventory

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Reservation states.
const (
	StateActive    = "active"
	StateReleased  = "released"
	StateConverted = "converted"
)

// StockReservation holds units of stock for a pending order until the
// order reaches a terminal status.
type StockReservation struct {
	gorm.Model    `json:"-"`
	ReservationID string    `gorm:"uniqueIndex" json:"reservation_id"`
	OrderID       string    `gorm:"index" json:"order_id"`
	VariantSKU    string    `json:"variant_sku"`
	Quantity      int64     `json:"quantity"`
	State         string    `json:"state"` // active, released, converted
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service manages stock reservations. Latency is simulated to mirror a
// real warehouse system sitting behind this interface.
type Service struct {
	db         *gorm.DB
	minLatency int // in milliseconds
	maxLatency int
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:         db,
		minLatency: 2,
		maxLatency: 15,
	}
}

// Reserve records an active hold on stock for an order line.
func (s *Service) Reserve(orderID, variantSKU string, quantity int64) (*StockReservation, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	reservation := &StockReservation{
		ReservationID: fmt.Sprintf("RSV-%s-%d", orderID, rand.Int63()),
		OrderID:       orderID,
		VariantSKU:    variantSKU,
		Quantity:      quantity,
		State:         StateActive,
	}
	if err := s.db.Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

// CommitReservation converts an order's active holds when the order is
// paid.
func (s *Service) CommitReservation(orderID string) error {
	return s.transitionReservations(orderID, StateConverted, "commit")
}

// ReleaseReservation frees an order's active holds when the order is
// cancelled.
func (s *Service) ReleaseReservation(orderID string) error {
	return s.transitionReservations(orderID, StateReleased, "release")
}

func (s *Service) transitionReservations(orderID, toState, action string) error {
	logger := log.With().
		Str("component", "inventory").
		Str("order_id", orderID).
		Str("action", action).
		Logger()

	s.simulateLatency()

	res := s.db.Model(&StockReservation{}).
		Where("order_id = ? AND state = ?", orderID, StateActive).
		Update("state", toState)
	if res.Error != nil {
		logger.Error().Err(res.Error).Msg("reservation update failed")
		return res.Error
	}

	logger.Info().Int64("reservations", res.RowsAffected).Msg("reservations updated")
	return nil
}

func (s *Service) simulateLatency() {
	latency := rand.Intn(s.maxLatency-s.minLatency+1) + s.minLatency
	time.Sleep(time.Duration(latency) * time.Millisecond)
}

package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/avthrift/payments-api/internal/idempotency"
	"github.com/avthrift/payments-api/internal/types"
	"github.com/avthrift/payments-api/internal/webhook"
	"github.com/avthrift/payments-api/pkg/response"
)

// CreateOrderRequest is the payload for creating a new pending order.
type CreateOrderRequest struct {
	Email           string             `json:"email" binding:"required,email"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress types.JSONMap      `json:"shipping_address"`
}

type OrderItemRequest struct {
	ProductTitle string `json:"product_title" binding:"required"`
	VariantSKU   string `json:"variant_sku" binding:"required"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
	UnitPrice    string `json:"unit_price" binding:"required"`
}

// UpdateOrderRequest carries optional contact updates for a pending order.
type UpdateOrderRequest struct {
	Email           string        `json:"email"`
	ShippingAddress types.JSONMap `json:"shipping_address"`
}

// OrderDetail is the order plus its transition audit trail.
type OrderDetail struct {
	*types.Order
	StatusEvents []types.OrderStatusEvent `json:"status_events"`
}

// paymentWebhookEvent is the inbound payload on the order payment
// webhook. The gateway reports the order directly rather than through a
// payment intent reference.
type paymentWebhookEvent struct {
	OrderID string `json:"order_id"`
	Event   string `json:"event"`
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service       *Service
	idem          *idempotency.Service
	webhookSecret string
	webhookIPs    []string
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints.
// webhookSecret and webhookIPs configure the order payment webhook's
// signature verification.
func NewGinHandlers(service *Service, idem *idempotency.Service, webhookSecret string, webhookIPs []string) *GinHandlers {
	return &GinHandlers{
		service:       service,
		idem:          idem,
		webhookSecret: webhookSecret,
		webhookIPs:    webhookIPs,
	}
}

// CreateOrderHandler handles POST requests to create new pending orders
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		order := &types.Order{
			OrderID: uuid.New().String(),
			UserID:  c.GetString("userID"),
			Email:   req.Email,
		}
		if req.ShippingAddress != nil {
			cleaned, err := normalizeAddress(req.ShippingAddress)
			if err != nil {
				response.BadRequest(c, "Invalid shipping address")
				return
			}
			order.ShippingAddress = cleaned
		}
		for _, item := range req.Items {
			price, err := decimal.NewFromString(item.UnitPrice)
			if err != nil || price.IsNegative() {
				response.BadRequest(c, "Invalid unit price")
				return
			}
			order.Items = append(order.Items, types.OrderItem{
				OrderID:      order.OrderID,
				ProductTitle: item.ProductTitle,
				VariantSKU:   item.VariantSKU,
				Quantity:     item.Quantity,
				UnitPrice:    price,
			})
		}

		if err := h.service.CreateOrder(order); err != nil {
			response.InternalError(c, "Failed to create order")
			return
		}

		response.Success(c, order)
	}
}

// GetOrderHandler handles GET requests for a single order with its
// status event audit trail. Scoped to the authenticated user.
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.ownedOrder(c)
		if !ok {
			return
		}

		events, err := h.service.StatusEvents(order.OrderID)
		if err != nil {
			response.InternalError(c, "Failed to load order events")
			return
		}

		response.OK(c, OrderDetail{Order: order, StatusEvents: events})
	}
}

// UpdateOrderHandler handles PATCH requests to update a pending order's
// contact email and shipping address
func (h *GinHandlers) UpdateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.ownedOrder(c)
		if !ok {
			return
		}

		var req UpdateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		updated, err := h.service.UpdateContact(order, req.Email, req.ShippingAddress)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotPending):
				response.BadRequest(c, "Order is not pending")
			case errors.Is(err, ErrInvalidEmail):
				response.BadRequest(c, "Invalid email address")
			case errors.Is(err, ErrInvalidAddress):
				response.BadRequest(c, "Invalid shipping address")
			default:
				response.InternalError(c, "Failed to update order")
			}
			return
		}

		response.OK(c, updated)
	}
}

// PayOrderHandler handles POST requests to mark an order paid, guarded
// by the idempotency ledger
func (h *GinHandlers) PayOrderHandler() gin.HandlerFunc {
	return h.transitionHandler("pay", func(order *types.Order) (*types.Order, error) {
		return h.service.Pay(order)
	})
}

// CancelOrderHandler handles POST requests to cancel a pending order,
// guarded by the idempotency ledger
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return h.transitionHandler("cancel", func(order *types.Order) (*types.Order, error) {
		return h.service.Cancel(order)
	})
}

func (h *GinHandlers) transitionHandler(action string, transition func(*types.Order) (*types.Order, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.ownedOrder(c)
		if !ok {
			return
		}

		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			key = fmt.Sprintf("order-%s-%s", order.OrderID, action)
		}
		scope := c.GetString("userID")
		if scope == "" {
			scope = idempotency.ScopeAnonymous
		}
		requestHash := idempotency.ComputeRequestHash(map[string]string{
			"order_id": order.OrderID,
			"action":   action,
		})

		handler := func() (interface{}, int, error) {
			updated, err := transition(order)
			if err != nil {
				if errors.Is(err, ErrOrderCancelled) || errors.Is(err, ErrOrderPaid) {
					return response.ErrorBody{Detail: "Unable to update order."}, http.StatusBadRequest, nil
				}
				return nil, 0, err
			}
			return updated, http.StatusOK, nil
		}

		body, code, err := h.idem.Run(key, scope, c.FullPath(), c.Request.Method, requestHash, handler)
		if err != nil {
			response.InternalError(c, "Failed to update order")
			return
		}
		c.Data(code, "application/json", body)
	}
}

// PaymentWebhookHandler handles inbound payment notifications addressed
// to an order directly. Signature and IP checks run before anything else
// touches the payload.
func (h *GinHandlers) PaymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		if ok, reason := webhook.Verify(c.Request.Header, raw, c.ClientIP(), h.webhookSecret, h.webhookIPs); !ok {
			log.Warn().
				Str("service", "orders").
				Str("reason", reason).
				Str("remote_ip", c.ClientIP()).
				Msg("order payment webhook rejected")
			if reason == webhook.ReasonIPNotAllowed {
				response.Forbidden(c, "Forbidden")
				return
			}
			response.Unauthorized(c, "Invalid signature")
			return
		}

		var event paymentWebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil || event.OrderID == "" {
			response.BadRequest(c, "Invalid payload")
			return
		}

		order, err := h.service.GetOrder(event.OrderID)
		if err != nil {
			response.InternalError(c, "Failed to load order")
			return
		}
		if order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		if event.Event != "payment_succeeded" {
			response.OK(c, types.WebhookResult{Status: "ignored"})
			return
		}

		if _, err := h.service.Pay(order); err != nil {
			response.BadRequest(c, "Unable to update order.")
			return
		}
		response.OK(c, types.WebhookResult{Status: "processed", OrderID: order.OrderID})
	}
}

func (h *GinHandlers) ownedOrder(c *gin.Context) (*types.Order, bool) {
	orderID := c.Param("order_id")
	if orderID == "" {
		response.BadRequest(c, "Order ID is required")
		return nil, false
	}

	order, err := h.service.GetOrderForUser(orderID, c.GetString("userID"))
	if err != nil {
		response.InternalError(c, "Failed to load order")
		return nil, false
	}
	if order == nil {
		response.NotFound(c, "Order not found")
		return nil, false
	}
	return order, true
}

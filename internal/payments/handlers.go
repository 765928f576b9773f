package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/avthrift/payments-api/internal/idempotency"
	"github.com/avthrift/payments-api/internal/types"
	"github.com/avthrift/payments-api/internal/webhook"
	"github.com/avthrift/payments-api/pkg/response"
)

// OrderDirectory is the order lookup surface the payment handlers need
// for request-scoped ownership checks.
type OrderDirectory interface {
	GetOrderForUser(orderID, userID string) (*types.Order, error)
	GetOrder(orderID string) (*types.Order, error)
}

// InitializePayload is the request body for Paystack initialization.
// Amount is a decimal string; when omitted the order's items total is
// used. Currency must be one of the supported enum values.
type InitializePayload struct {
	OrderID   string        `json:"order_id" binding:"required"`
	Amount    string        `json:"amount"`
	Currency  string        `json:"currency" binding:"omitempty,currency"`
	Reference string        `json:"reference"`
	Metadata  types.JSONMap `json:"metadata"`
}

// IntentUpsertPayload is the request body for creating or updating a
// payment intent by reference.
type IntentUpsertPayload struct {
	OrderID   string        `json:"order_id" binding:"required"`
	Reference string        `json:"reference" binding:"required"`
	Amount    string        `json:"amount"`
	Currency  string        `json:"currency" binding:"omitempty,currency"`
	Provider  string        `json:"provider"`
	Metadata  types.JSONMap `json:"metadata"`
}

// GinHandlers contains HTTP handlers for payment endpoints
type GinHandlers struct {
	service    *Service
	orders     OrderDirectory
	idem       *idempotency.Service
	secretKey  string
	allowedIPs []string
	currencies map[string]bool
}

// NewGinHandlers creates a new set of HTTP handlers for payment
// endpoints. secretKey doubles as the webhook HMAC secret; allowedIPs
// optionally restricts webhook callers; currencies is the supported
// currency allow-list.
func NewGinHandlers(service *Service, orders OrderDirectory, idem *idempotency.Service, secretKey string, allowedIPs, currencies []string) *GinHandlers {
	supported := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		supported[normalizeCurrency(c)] = true
	}
	return &GinHandlers{
		service:    service,
		orders:     orders,
		idem:       idem,
		secretKey:  secretKey,
		allowedIPs: allowedIPs,
		currencies: supported,
	}
}

// HealthHandler reports liveness of the payments app
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// InitializeHandler handles POST requests to initialize a Paystack
// transaction for an order, deduplicated through the idempotency ledger
func (h *GinHandlers) InitializeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitializePayload
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, initializeBindDetail(err))
			return
		}

		userID := c.GetString("userID")
		order, err := h.orders.GetOrderForUser(req.OrderID, userID)
		if err != nil {
			response.InternalError(c, "Failed to load order")
			return
		}
		if order == nil {
			log.Error().
				Str("service", "payments").
				Str("user_id", userID).
				Str("order_id", req.OrderID).
				Msg("initialize order not found")
			response.NotFound(c, "Order not found")
			return
		}

		amount, ok := h.resolveAmount(c, req.Amount, order)
		if !ok {
			return
		}

		currency := normalizeCurrency(req.Currency)
		if len(h.currencies) > 0 && !h.currencies[currency] {
			response.BadRequest(c, "Unsupported currency")
			return
		}

		reference := req.Reference
		if reference == "" {
			reference = fmt.Sprintf("ORD-%s-paystack", order.OrderID)
		}
		metadata := types.JSONMap{"order_id": order.OrderID, "user_id": userID}

		handler := func() (interface{}, int, error) {
			intent, err := h.service.InitializeTransaction(c.Request.Context(), order, amount, currency, reference, metadata)
			if err != nil {
				return nil, 0, err
			}
			return types.InitializeResponse{
				AuthorizationURL: intent.AuthorizationURL,
				Reference:        intent.Reference,
				AccessCode:       intent.AccessCode,
				Currency:         intent.Currency,
			}, http.StatusOK, nil
		}

		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			key = reference
		}
		requestHash := idempotency.ComputeRequestHash(req)

		body, code, err := h.idem.Run(key, userID, c.FullPath(), c.Request.Method, requestHash, handler)
		if err != nil {
			switch {
			case errors.Is(err, ErrInitializeFailed):
				response.BadRequest(c, "Failed to initialize Paystack transaction")
			case errors.Is(err, ErrGatewayUnavailable):
				c.JSON(http.StatusBadGateway, response.ErrorBody{Detail: "Payment gateway unavailable"})
			default:
				response.InternalError(c, "Failed to initialize transaction")
			}
			return
		}

		log.Info().
			Str("service", "payments").
			Str("user_id", userID).
			Str("order_id", order.OrderID).
			Str("reference", reference).
			Int("status_code", code).
			Msg("initialize result")
		c.Data(code, "application/json", body)
	}
}

// UpsertIntentHandler handles POST requests to create or update a
// payment intent by reference
func (h *GinHandlers) UpsertIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IntentUpsertPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		userID := c.GetString("userID")
		order, err := h.orders.GetOrderForUser(req.OrderID, userID)
		if err != nil {
			response.InternalError(c, "Failed to load order")
			return
		}
		if order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		amount, ok := h.resolveAmount(c, req.Amount, order)
		if !ok {
			return
		}

		metadata := req.Metadata
		if metadata == nil {
			metadata = types.JSONMap{"order_id": order.OrderID, "user_id": userID}
		}

		intent, err := h.service.UpsertIntent(order, req.Reference, amount, req.Currency, req.Provider, metadata)
		if err != nil {
			response.InternalError(c, "Failed to upsert intent")
			return
		}
		response.OK(c, intent)
	}
}

// GetIntentHandler handles GET requests for a payment intent by
// reference, scoped to the owning user
func (h *GinHandlers) GetIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reference := c.Param("reference")
		intent, err := h.service.IntentByReference(reference)
		if err != nil {
			response.InternalError(c, "Failed to load intent")
			return
		}
		if intent == nil {
			response.NotFound(c, "Intent not found")
			return
		}

		// Non-owners get the same 404 as a missing intent.
		order, err := h.orders.GetOrder(intent.OrderID)
		if err != nil {
			response.InternalError(c, "Failed to load intent")
			return
		}
		if order == nil || order.UserID != c.GetString("userID") {
			response.NotFound(c, "Intent not found")
			return
		}

		response.OK(c, intent)
	}
}

// WebhookHandler handles Paystack webhook deliveries. Signature and IP
// checks run against the raw body before parsing; once a payload is
// authenticated and structurally valid the gateway always gets a 200,
// whatever happens downstream, to avoid retry storms.
func (h *GinHandlers) WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := log.With().
			Str("service", "payments").
			Str("remote_ip", c.ClientIP()).
			Logger()

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		if ok, reason := webhook.Verify(c.Request.Header, raw, c.ClientIP(), h.secretKey, nil); !ok {
			logger.Warn().Str("reason", reason).Msg("webhook invalid signature")
			response.Unauthorized(c, "Invalid signature")
			return
		}

		if len(h.allowedIPs) > 0 && !containsIP(h.allowedIPs, c.ClientIP()) {
			logger.Warn().Msg("webhook forbidden ip")
			response.Forbidden(c, "Forbidden")
			return
		}

		var event types.JSONMap
		if err := json.Unmarshal(raw, &event); err != nil {
			logger.Warn().Msg("webhook invalid payload")
			response.BadRequest(c, "Invalid payload")
			return
		}

		reference := eventReference(event)
		if reference == "" {
			logger.Warn().Msg("webhook missing reference")
			response.BadRequest(c, "Missing reference")
			return
		}

		intent, err := h.service.IntentByReference(reference)
		if err != nil {
			response.InternalError(c, "Failed to load intent")
			return
		}
		if intent == nil {
			logger.Warn().Str("reference", reference).Msg("webhook intent not found")
			response.NotFound(c, "Intent not found")
			return
		}

		if h.service.RecordWebhookDigest(intent, raw) {
			logger.Info().Str("reference", reference).Msg("webhook ignored duplicate")
			response.OK(c, types.WebhookResult{Status: "ignored"})
			return
		}

		switch event["event"] {
		case "charge.success":
			logger.Info().Str("reference", reference).Str("order_id", intent.OrderID).Msg("webhook charge success")
			h.service.Finalize(intent, event)
			response.OK(c, types.WebhookResult{Status: "processed", OrderID: intent.OrderID})
		case "charge.failed":
			h.service.MarkFailed(intent, event)
			logger.Info().Str("reference", reference).Str("order_id", intent.OrderID).Msg("webhook charge failed")
			response.OK(c, types.WebhookResult{Status: "processed"})
		default:
			logger.Info().Str("reference", reference).Msg("webhook ignored event")
			response.OK(c, types.WebhookResult{Status: "ignored"})
		}
	}
}

func (h *GinHandlers) resolveAmount(c *gin.Context, raw string, order *types.Order) (decimal.Decimal, bool) {
	if raw == "" {
		return order.ItemsTotal(), true
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		response.BadRequest(c, "Invalid amount")
		return decimal.Zero, false
	}
	return amount, true
}

// eventReference pulls the transaction reference out of a webhook
// payload, accepting the legacy reference_code field as a fallback.
func eventReference(event types.JSONMap) string {
	data, ok := event["data"].(map[string]interface{})
	if !ok {
		return ""
	}
	if ref, ok := data["reference"].(string); ok && ref != "" {
		return ref
	}
	if ref, ok := data["reference_code"].(string); ok {
		return ref
	}
	return ""
}

func containsIP(list []string, ip string) bool {
	for _, v := range list {
		if v == ip {
			return true
		}
	}
	return false
}

func initializeBindDetail(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Currency"):
		return "Unsupported currency"
	case strings.Contains(msg, "OrderID"):
		return "order_id is required"
	default:
		return "Invalid payload"
	}
}

package types

// InitializeResponse is the body returned after a Paystack transaction
// has been initialized for an order.
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	AccessCode       string `json:"access_code"`
	Currency         string `json:"currency"`
}

// WebhookResult is the body returned to the gateway after a webhook
// delivery has been handled.
type WebhookResult struct {
	Status  string `json:"status"` // processed or ignored
	OrderID string `json:"order_id,omitempty"`
}

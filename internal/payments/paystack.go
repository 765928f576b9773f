package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avthrift/payments-api/internal/types"
)

// ErrGatewayUnavailable covers transport-level failures talking to
// Paystack; the initialize endpoint surfaces it distinctly from a
// declined initialization.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrInitializeFailed means Paystack answered but declined to create
// the transaction.
var ErrInitializeFailed = errors.New("failed to initialize Paystack transaction")

const gatewayTimeout = 15 * time.Second

// GatewayClient talks to the Paystack transaction API. Every call
// carries a bounded timeout; a gateway outage surfaces as an error,
// never a hang.
type GatewayClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewGatewayClient(baseURL, secretKey string) *GatewayClient {
	return &GatewayClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client: &http.Client{
			Timeout: gatewayTimeout,
		},
	}
}

// InitializeRequest is the outbound payload for transaction/initialize.
// Amount is in integer minor units per the Paystack contract.
type InitializeRequest struct {
	Email     string        `json:"email"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Reference string        `json:"reference"`
	Metadata  types.JSONMap `json:"metadata"`
}

// GatewayResponse is the common Paystack response envelope.
type GatewayResponse struct {
	Status  bool           `json:"status"`
	Message string         `json:"message"`
	Data    GatewayTxnData `json:"data"`
}

type GatewayTxnData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	Amount           int64  `json:"amount"`
	GatewayStatus    string `json:"status"`
	Currency         string `json:"currency"`
}

// Initialize creates a Paystack transaction for the given request.
func (g *GatewayClient) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	url := g.baseURL + "/transaction/initialize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build initialize request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var body GatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: bad response body", ErrGatewayUnavailable)
	}

	if resp.StatusCode != http.StatusOK || !body.Status {
		log.Error().
			Str("service", "payments").
			Int("code", resp.StatusCode).
			Str("path", url).
			Str("reference", req.Reference).
			Str("currency", req.Currency).
			Msg("paystack initialize failed")
		return nil, ErrInitializeFailed
	}

	return &body, nil
}

// Verify fetches the gateway's view of a transaction by reference.
func (g *GatewayClient) Verify(ctx context.Context, reference string) (*GatewayResponse, error) {
	url := g.baseURL + "/transaction/verify/" + reference
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var body GatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: bad response body", ErrGatewayUnavailable)
	}
	return &body, nil
}

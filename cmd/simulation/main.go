package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/avthrift/payments-api/internal/auth"
	"github.com/avthrift/payments-api/internal/database"
	"github.com/avthrift/payments-api/internal/idempotency"
	"github.com/avthrift/payments-api/internal/inventory"
	"github.com/avthrift/payments-api/internal/notifications"
	"github.com/avthrift/payments-api/internal/orders"
	"github.com/avthrift/payments-api/internal/payments"
	"github.com/avthrift/payments-api/internal/types"
	"github.com/avthrift/payments-api/internal/validation"
	"github.com/avthrift/payments-api/internal/webhook"
	"github.com/avthrift/payments-api/pkg/middleware"
)

const (
	minOrders      = 15
	maxOrders      = 150
	numWorkers     = 5
	serverAddress  = "http://localhost:8080"
	gatewayAddress = "localhost:8091"
	gatewaySecret  = "sk_test_simulation"
	jwtSecret      = "simulation-secret-key"
)

var products = []struct {
	Title string
	SKU   string
	Price string
}{
	{"Linen Overshirt", "LNO-001", "120.00"},
	{"Canvas Tote", "CVT-014", "45.00"},
	{"Wool Beanie", "WLB-203", "28.00"},
	{"Trail Sneakers", "TRS-550", "210.00"},
	{"Enamel Mug", "ENM-090", "18.00"},
}

var currencies = []string{"NGN", "USD", "GHS"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulatedOrder carries what the simulation needs to pay for an order it created
type simulatedOrder struct {
	OrderID  string
	Currency string
	// Total is the order value in major units, summed from the generated items
	Total decimal.Decimal
}

// simulationClient handles HTTP communication with the payments API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":       {name: "Authentication"},
			"create":     {name: "Create Order"},
			"initialize": {name: "Initialize Payment"},
			"webhook":    {name: "Payment Webhook"},
			"get":        {name: "Get Order"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	creds := auth.Credentials{
		APIKey:    auth.TestAPIKey,
		APISecret: auth.TestAPISecret,
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		sc.stats["auth"].failures++
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["auth"].failures++
		return "", fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result auth.TokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Token == "" {
		return "", fmt.Errorf("no token in response: %s", string(respBody))
	}

	return result.Token, nil
}

// createOrder submits a new order to the API
// Returns the created order details on success
func (sc *simulationClient) createOrder(req *orders.CreateOrderRequest) (*types.Order, error) {
	start := time.Now()
	defer func() {
		sc.stats["create"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	httpReq.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		sc.stats["create"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Create order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["create"].failures++
		return nil, fmt.Errorf("create order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var order types.Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if order.OrderID == "" {
		return nil, fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return &order, nil
}

// initializePayment starts a Paystack transaction for an order
// Returns the authorization details including the transaction reference
func (sc *simulationClient) initializePayment(orderID, currency string) (*types.InitializeResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["initialize"].addDuration(time.Since(start))
	}()

	payload := payments.InitializePayload{
		OrderID:  orderID,
		Currency: currency,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/payments/paystack/initialize", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["initialize"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Initialize payment response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["initialize"].failures++
		return nil, fmt.Errorf("initialize payment failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result types.InitializeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Reference == "" {
		return nil, fmt.Errorf("no reference in response: %s", string(respBody))
	}

	return &result, nil
}

// deliverWebhook posts a signed charge.success event for the reference
// Returns the webhook processing result on success
func (sc *simulationClient) deliverWebhook(reference string, amountMinor int64) (*types.WebhookResult, error) {
	start := time.Now()
	defer func() {
		sc.stats["webhook"].addDuration(time.Since(start))
	}()

	event := map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"reference": reference,
			"amount":    amountMinor,
			"status":    "success",
			"id":        rand.Intn(1_000_000_000),
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/payments/webhooks/paystack", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(body, gatewaySecret))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["webhook"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Webhook response")

	if resp.StatusCode != http.StatusOK {
		sc.stats["webhook"].failures++
		return nil, fmt.Errorf("webhook failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result types.WebhookResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result, nil
}

// getOrder retrieves the current order details
func (sc *simulationClient) getOrder(orderID string) (*orders.OrderDetail, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/orders/%s", sc.baseURL, orderID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["get"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sc.stats["get"].failures++
		return nil, fmt.Errorf("get order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var detail orders.OrderDetail
	if err := json.Unmarshal(respBody, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &detail, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the checkout simulation
// It starts a stub gateway and a local API server, then simulates multiple
// concurrent shoppers paying for their orders via signed webhooks
func main() {
	// Start the stub Paystack gateway in a goroutine
	go func() {
		if err := startGateway(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start stub gateway")
		}
	}()

	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of orders to process
	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	// Channel to collect created orders
	ordersChan := make(chan simulatedOrder, targetOrders)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOrdersHTTP(workerID, targetOrders/numWorkers, simClient, ordersChan)
		}(i)
	}

	// Wait for all orders to be created
	wg.Wait()
	close(ordersChan)

	// Collect all created orders
	var created []simulatedOrder
	for order := range ordersChan {
		created = append(created, order)
	}

	log.Info().Int("orders_created", len(created)).Msg("All orders created")

	// Collect statistics during processing
	stats := struct {
		TotalOrders    int
		Initialized    int
		Processed      int
		PaidOrders     int
		TotalValue     float64
		FailedInit     int
		FailedWebhooks int
		StartTime      time.Time
		Currencies     map[string]int
		Products       map[string]int
	}{
		StartTime:  time.Now(),
		Currencies: make(map[string]int),
		Products:   make(map[string]int),
	}

	stats.TotalOrders = len(created)

	// Pay each order: initialize a transaction, then deliver the signed webhook
	for _, order := range created {
		initResp, err := simClient.initializePayment(order.OrderID, order.Currency)
		if err != nil {
			log.Error().Err(err).
				Str("order_id", order.OrderID).
				Msg("Failed to initialize payment")
			stats.FailedInit++
			continue
		}
		stats.Initialized++
		stats.Currencies[initResp.Currency]++

		log.Info().
			Str("order_id", order.OrderID).
			Str("reference", initResp.Reference).
			Str("currency", initResp.Currency).
			Msg("Payment initialized")

		amountMinor := payments.MinorUnits(order.Total, order.Currency)
		result, err := simClient.deliverWebhook(initResp.Reference, amountMinor)
		if err != nil {
			log.Error().Err(err).
				Str("order_id", order.OrderID).
				Str("reference", initResp.Reference).
				Msg("Failed to deliver webhook")
			stats.FailedWebhooks++
			continue
		}
		if result.Status == "processed" {
			stats.Processed++
			stats.TotalValue += float64(amountMinor) / 100
		}

		// Confirm the order landed in its terminal state
		detail, err := simClient.getOrder(order.OrderID)
		if err == nil && detail.Order != nil {
			if detail.Order.Status == types.OrderStatusPaid {
				stats.PaidOrders++
			}
			for _, item := range detail.Order.Items {
				stats.Products[item.ProductTitle] += int(item.Quantity)
			}
		}

		log.Info().
			Str("order_id", order.OrderID).
			Str("reference", initResp.Reference).
			Int64("amount_minor", amountMinor).
			Str("webhook_status", result.Status).
			Msg("Order paid")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🛒 CHECKOUT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Statistics
------------------
Total Orders:     %d
Initialized:      %d
Webhooks OK:      %d
Orders Paid:      %d
Failed Init:      %d
Failed Webhooks:  %d
Total Value:      %.2f
Duration:         %v

💱 Currency Distribution
----------------------
`, stats.TotalOrders, stats.Initialized, stats.Processed, stats.PaidOrders,
		stats.FailedInit, stats.FailedWebhooks,
		stats.TotalValue, duration.Round(time.Millisecond))

	// Print currency distribution with simple ASCII bar chart
	maxCurrencyCount := 0
	for _, count := range stats.Currencies {
		if count > maxCurrencyCount {
			maxCurrencyCount = count
		}
	}

	for currency, count := range stats.Currencies {
		barLength := int(float64(count) / float64(maxCurrencyCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", currency, bar, count)
	}

	fmt.Println("\n📦 Product Distribution")
	fmt.Println("---------------------")
	maxProductCount := 0
	for _, count := range stats.Products {
		if count > maxProductCount {
			maxProductCount = count
		}
	}
	for product, count := range stats.Products {
		barLength := int(float64(count) / float64(maxProductCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-16s: %s (%d)\n", product, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	// Success rate calculation
	successRate := float64(stats.PaidOrders) / float64(stats.TotalOrders) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("total_orders", stats.TotalOrders).
		Int("paid_orders", stats.PaidOrders).
		Float64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// createOrdersHTTP generates and submits random orders to the API
// Runs as a worker goroutine, sending created orders to ordersChan
func createOrdersHTTP(workerID, numOrders int, simClient *simulationClient, ordersChan chan<- simulatedOrder) {
	for i := 0; i < numOrders; i++ {
		numItems := rand.Intn(3) + 1
		items := make([]orders.OrderItemRequest, 0, numItems)
		total := decimal.Zero
		for j := 0; j < numItems; j++ {
			product := products[rand.Intn(len(products))]
			quantity := int64(rand.Intn(3) + 1)
			items = append(items, orders.OrderItemRequest{
				ProductTitle: product.Title,
				VariantSKU:   product.SKU,
				Quantity:     quantity,
				UnitPrice:    product.Price,
			})
			price, _ := decimal.NewFromString(product.Price)
			total = total.Add(price.Mul(decimal.NewFromInt(quantity)))
		}

		req := &orders.CreateOrderRequest{
			Email: fmt.Sprintf("shopper%d-%d@example.com", workerID, i),
			Items: items,
			ShippingAddress: types.JSONMap{
				"recipient": fmt.Sprintf("Shopper %d-%d", workerID, i),
				"line1":     "12 Palm Road",
				"city":      "Lagos",
				"country":   "NG",
			},
		}

		order, err := simClient.createOrder(req)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Msg("Failed to create order")
			continue
		}

		ordersChan <- simulatedOrder{
			OrderID:  order.OrderID,
			Currency: currencies[rand.Intn(len(currencies))],
			Total:    total,
		}
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("order_id", order.OrderID).
			Int("items", len(items)).
			Str("total", total.String()).
			Msg("Order created")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startGateway runs a stub Paystack transaction endpoint so the simulation
// never touches the real gateway
func startGateway() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		var req payments.InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]interface{}{
				"authorization_url": fmt.Sprintf("https://checkout.paystack.test/%s", req.Reference),
				"access_code":       uuid.New().String(),
				"reference":         req.Reference,
				"amount":            req.Amount,
				"currency":          req.Currency,
			},
		})
	})

	listener, err := net.Listen("tcp", gatewayAddress)
	if err != nil {
		return fmt.Errorf("failed to bind gateway listener: %w", err)
	}
	return http.Serve(listener, mux)
}

// startServer initializes and starts the payments API server
// Sets up all required services, handlers and routes against the stub gateway
func startServer() error {
	if err := validation.Register(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	// Initialize database
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(jwtSecret)
	idemService := idempotency.NewService(db)
	inventoryService := inventory.NewService(db)
	emailSender := notifications.NewEmailSender("orders@avthrift.example")
	orderService := orders.NewService(db, emailSender, inventoryService, emailSender)
	gatewayClient := payments.NewGatewayClient("http://"+gatewayAddress, gatewaySecret)
	paymentService := payments.NewService(db, gatewayClient, orderService, notifications.LogReporter{})

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	orderHandlers := orders.NewGinHandlers(orderService, idemService, gatewaySecret, nil)
	paymentHandlers := payments.NewGinHandlers(
		paymentService,
		orderService,
		idemService,
		gatewaySecret,
		nil,
		currencies,
	)

	// Setup routes
	setupRoutes(router, authHandlers, orderHandlers, paymentHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	paymentHandlers *payments.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.POST("/webhooks/payment", orderHandlers.PaymentWebhookHandler())
		orderGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			orderGroup.POST("", orderHandlers.CreateOrderHandler())
			orderGroup.GET("/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.POST("/:order_id/pay", orderHandlers.PayOrderHandler())
			orderGroup.POST("/:order_id/cancel", orderHandlers.CancelOrderHandler())
		}

		// Payment routes
		paymentGroup := v1.Group("/payments")
		paymentGroup.GET("/health", paymentHandlers.HealthHandler())
		paymentGroup.POST("/webhooks/paystack", paymentHandlers.WebhookHandler())
		paymentGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			paymentGroup.POST("/paystack/initialize", paymentHandlers.InitializeHandler())
			paymentGroup.POST("/intents", paymentHandlers.UpsertIntentHandler())
			paymentGroup.GET("/intents/:reference", paymentHandlers.GetIntentHandler())
		}
	}
}

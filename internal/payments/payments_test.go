package payments

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/internal/orders"
	"github.com/avthrift/payments-api/internal/types"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:paytest%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&types.Order{},
		&types.OrderItem{},
		&types.OrderStatusEvent{},
		&PaymentIntent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeReporter struct {
	messages []string
	errors   []error
}

func (f *fakeReporter) CaptureMessage(msg string) { f.messages = append(f.messages, msg) }
func (f *fakeReporter) CaptureError(err error)    { f.errors = append(f.errors, err) }

type paymentsEnv struct {
	db       *gorm.DB
	service  *Service
	orders   *orders.Service
	reporter *fakeReporter
}

func newPaymentsEnv(t *testing.T) *paymentsEnv {
	t.Helper()
	db := newTestDB(t)
	orderService := orders.NewService(db, nil, nil, nil)
	reporter := &fakeReporter{}
	gateway := NewGatewayClient("http://127.0.0.1:1", "sk_test_unused")
	return &paymentsEnv{
		db:       db,
		service:  NewService(db, gateway, orderService, reporter),
		orders:   orderService,
		reporter: reporter,
	}
}

func (e *paymentsEnv) createOrder(t *testing.T, orderID string) *types.Order {
	t.Helper()
	order := &types.Order{
		OrderID: orderID,
		UserID:  "user-1",
		Email:   "shopper@example.com",
		Items: []types.OrderItem{
			{OrderID: orderID, ProductTitle: "Canvas Tote", VariantSKU: "CVT-014", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		},
	}
	if err := e.orders.CreateOrder(order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func (e *paymentsEnv) createIntent(t *testing.T, order *types.Order, reference, amount string) *PaymentIntent {
	t.Helper()
	intent, err := e.service.UpsertIntent(order, reference, decimal.RequireFromString(amount), "NGN", ProviderPaystack, nil)
	if err != nil {
		t.Fatalf("failed to upsert intent: %v", err)
	}
	return intent
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"50.00", "NGN", 5000},
		{"123.45", "USD", 12345},
		{"0", "NGN", 0},
		{"0.01", "GHS", 1},
		{"75.50", "", 7550},    // empty currency defaults to NGN
		{"10.00", "ngn", 1000}, // case-insensitive
		{"2.00", "BTC", 200},   // unknown currency falls back to two decimals
	}
	for _, tt := range tests {
		got := MinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("MinorUnits(%s, %q) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestUpsertIntentResetsStatus(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")

	intent := env.createIntent(t, order, "ref-1", "50.00")
	if intent.Status != StatusInitialized {
		t.Fatalf("status mismatch: got %q want %q", intent.Status, StatusInitialized)
	}

	// A later failed attempt is wound back to initialized on re-upsert.
	intent.Status = StatusFailed
	if err := env.service.db.UpdateIntent(intent); err != nil {
		t.Fatalf("failed to update intent: %v", err)
	}

	again := env.createIntent(t, order, "ref-1", "60.00")
	if again.Status != StatusInitialized {
		t.Fatalf("status mismatch after re-upsert: got %q want %q", again.Status, StatusInitialized)
	}
	if !again.Amount.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("amount mismatch after re-upsert: got %s", again.Amount)
	}

	var count int64
	if err := env.db.Model(&PaymentIntent{}).Where("reference = ?", "ref-1").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("intent rows: got %d want 1", count)
	}
}

func TestFinalizePaysOrderOnMatchingAmount(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	event := types.JSONMap{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "ref-1", "amount": float64(5000)},
	}
	env.service.Finalize(intent, event)

	if intent.Status != StatusSucceeded {
		t.Fatalf("intent status mismatch: got %q want %q", intent.Status, StatusSucceeded)
	}
	current, _ := env.orders.GetOrder(order.OrderID)
	if current.Status != types.OrderStatusPaid {
		t.Fatalf("order status mismatch: got %q want %q", current.Status, types.OrderStatusPaid)
	}
	events, _ := env.orders.StatusEvents(order.OrderID)
	if len(events) != 1 {
		t.Fatalf("status events: got %d want 1", len(events))
	}

	// A duplicate finalize is a no-op against the already succeeded
	// intent.
	env.service.Finalize(intent, event)
	events, _ = env.orders.StatusEvents(order.OrderID)
	if len(events) != 1 {
		t.Fatalf("status events after duplicate finalize: got %d want 1", len(events))
	}
}

func TestFinalizeAmountMismatchFailsIntent(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	event := types.JSONMap{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "ref-1", "amount": float64(4999)},
	}
	env.service.Finalize(intent, event)

	if intent.Status != StatusFailed {
		t.Fatalf("intent status mismatch: got %q want %q", intent.Status, StatusFailed)
	}
	current, _ := env.orders.GetOrder(order.OrderID)
	if current.Status != types.OrderStatusPending {
		t.Fatalf("order status mismatch: got %q want %q", current.Status, types.OrderStatusPending)
	}
	if len(env.reporter.messages) != 1 || env.reporter.messages[0] != "paystack_amount_mismatch" {
		t.Fatalf("reporter messages mismatch: %v", env.reporter.messages)
	}
}

func TestFinalizeKeepsIntentSucceededWhenOrderRejectsPayment(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	// The customer cancelled while the charge was in flight.
	if _, err := env.orders.Cancel(order); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	event := types.JSONMap{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "ref-1", "amount": float64(5000)},
	}
	env.service.Finalize(intent, event)

	// The money landed: the intent records success for manual
	// reconciliation, the order stays cancelled.
	if intent.Status != StatusSucceeded {
		t.Fatalf("intent status mismatch: got %q want %q", intent.Status, StatusSucceeded)
	}
	current, _ := env.orders.GetOrder(order.OrderID)
	if current.Status != types.OrderStatusCancelled {
		t.Fatalf("order status mismatch: got %q want %q", current.Status, types.OrderStatusCancelled)
	}
	if len(env.reporter.errors) == 0 {
		t.Fatal("expected the rejected payment to be captured")
	}
}

func TestFinalizeWithoutReportedAmountStillPays(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	// No amount in the event payload skips reconciliation.
	event := types.JSONMap{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "ref-1"},
	}
	env.service.Finalize(intent, event)

	if intent.Status != StatusSucceeded {
		t.Fatalf("intent status mismatch: got %q want %q", intent.Status, StatusSucceeded)
	}
	current, _ := env.orders.GetOrder(order.OrderID)
	if current.Status != types.OrderStatusPaid {
		t.Fatalf("order status mismatch: got %q want %q", current.Status, types.OrderStatusPaid)
	}
}

func TestMarkFailed(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	event := types.JSONMap{
		"event": "charge.failed",
		"data":  map[string]interface{}{"reference": "ref-1"},
	}
	env.service.MarkFailed(intent, event)

	reloaded, err := env.service.IntentByReference("ref-1")
	if err != nil {
		t.Fatalf("IntentByReference returned error: %v", err)
	}
	if reloaded.Status != StatusFailed {
		t.Fatalf("status mismatch: got %q want %q", reloaded.Status, StatusFailed)
	}
	current, _ := env.orders.GetOrder(order.OrderID)
	if current.Status != types.OrderStatusPending {
		t.Fatalf("order status mismatch: got %q want %q", current.Status, types.OrderStatusPending)
	}
}

func TestRecordWebhookDigest(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	intent := env.createIntent(t, order, "ref-1", "50.00")

	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	if env.service.RecordWebhookDigest(intent, payload) {
		t.Fatal("first delivery flagged as duplicate")
	}
	if !env.service.RecordWebhookDigest(intent, payload) {
		t.Fatal("identical redelivery not flagged as duplicate")
	}
	if env.service.RecordWebhookDigest(intent, []byte(`{"event":"charge.failed"}`)) {
		t.Fatal("different payload flagged as duplicate")
	}
}

func TestEventAmount(t *testing.T) {
	tests := []struct {
		name  string
		event types.JSONMap
		want  int64
	}{
		{"float amount", types.JSONMap{"data": map[string]interface{}{"amount": float64(5000)}}, 5000},
		{"int amount", types.JSONMap{"data": map[string]interface{}{"amount": 5000}}, 5000},
		{"missing data", types.JSONMap{}, 0},
		{"string amount", types.JSONMap{"data": map[string]interface{}{"amount": "5000"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventAmount(tt.event); got != tt.want {
				t.Fatalf("eventAmount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEventReference(t *testing.T) {
	primary := types.JSONMap{"data": map[string]interface{}{"reference": "ref-1"}}
	if got := eventReference(primary); got != "ref-1" {
		t.Fatalf("reference mismatch: got %q", got)
	}
	legacy := types.JSONMap{"data": map[string]interface{}{"reference_code": "ref-2"}}
	if got := eventReference(legacy); got != "ref-2" {
		t.Fatalf("legacy reference mismatch: got %q", got)
	}
	if got := eventReference(types.JSONMap{}); got != "" {
		t.Fatalf("expected empty reference, got %q", got)
	}
}

func TestIntentSelectors(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	env.createIntent(t, order, "ref-1", "50.00")
	failed := env.createIntent(t, order, "ref-2", "50.00")
	env.service.MarkFailed(failed, types.JSONMap{"event": "charge.failed"})

	all, err := env.service.IntentsForOrder(order.OrderID, "")
	if err != nil {
		t.Fatalf("IntentsForOrder returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("intents for order: got %d want 2", len(all))
	}

	onlyFailed, err := env.service.IntentsForOrder(order.OrderID, StatusFailed)
	if err != nil {
		t.Fatalf("IntentsForOrder returned error: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].Reference != "ref-2" {
		t.Fatalf("failed intents mismatch: %+v", onlyFailed)
	}

	recent, err := env.service.RecentFailedIntents(10)
	if err != nil {
		t.Fatalf("RecentFailedIntents returned error: %v", err)
	}
	if len(recent) != 1 || recent[0].Reference != "ref-2" {
		t.Fatalf("recent failed mismatch: %+v", recent)
	}
}

func TestListStaleInitializedIntents(t *testing.T) {
	env := newPaymentsEnv(t)
	order := env.createOrder(t, "ord-1")
	env.createIntent(t, order, "ref-fresh", "50.00")

	stale := env.createIntent(t, order, "ref-stale", "50.00")
	if err := env.db.Model(stale).UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("failed to age intent: %v", err)
	}

	done := env.createIntent(t, order, "ref-done", "50.00")
	done.Status = StatusSucceeded
	if err := env.service.db.UpdateIntent(done); err != nil {
		t.Fatalf("failed to update intent: %v", err)
	}

	intents, err := env.service.db.ListStaleInitializedIntents(time.Now().Add(-15*time.Minute), 50)
	if err != nil {
		t.Fatalf("ListStaleInitializedIntents returned error: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("stale intents: got %d want 1", len(intents))
	}
	if intents[0].Reference != "ref-stale" {
		t.Fatalf("reference mismatch: got %q want %q", intents[0].Reference, "ref-stale")
	}
}

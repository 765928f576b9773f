package idempotency

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:ledgertest%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Serialize access; sqlite rejects concurrent writers.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func okHandler(body interface{}, code int) Handler {
	return func() (interface{}, int, error) {
		return body, code, nil
	}
}

func TestRunExecutesHandlerOnFirstUse(t *testing.T) {
	svc := NewService(newTestDB(t))

	body, code, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a",
		okHandler(map[string]string{"status": "paid"}, http.StatusOK))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("code mismatch: got %d want %d", code, http.StatusOK)
	}
	if !strings.Contains(string(body), `"paid"`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRunReplaysCachedResponse(t *testing.T) {
	svc := NewService(newTestDB(t))

	var calls int32
	handler := func() (interface{}, int, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]string{"status": "paid"}, http.StatusOK, nil
	}

	first, firstCode, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a", handler)
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	second, secondCode, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a", handler)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("handler executed %d times, want 1", calls)
	}
	if string(first) != string(second) || firstCode != secondCode {
		t.Fatalf("replay mismatch: first (%d, %s) second (%d, %s)", firstCode, first, secondCode, second)
	}
}

func TestRunKeyReuseWithDifferentPayload(t *testing.T) {
	svc := NewService(newTestDB(t))

	if _, _, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a",
		okHandler("ok", http.StatusOK)); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}

	body, code, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-b",
		okHandler("ok", http.StatusOK))
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if code != http.StatusConflict {
		t.Fatalf("code mismatch: got %d want %d", code, http.StatusConflict)
	}
	if !strings.Contains(string(body), "Idempotency key reused with different request payload") {
		t.Fatalf("unexpected conflict body: %s", body)
	}
}

func TestRunDistinctIdentitiesDoNotCollide(t *testing.T) {
	svc := NewService(newTestDB(t))

	var calls int32
	handler := func() (interface{}, int, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", http.StatusOK, nil
	}

	// Same key, different scope, path or method are separate identities.
	identities := []struct{ scope, path, method string }{
		{"user-1", "/orders/1/pay", "POST"},
		{"user-2", "/orders/1/pay", "POST"},
		{"user-1", "/orders/1/cancel", "POST"},
		{"user-1", "/orders/1/pay", "PUT"},
	}
	for _, id := range identities {
		if _, _, err := svc.Run("key-1", id.scope, id.path, id.method, "hash-a", handler); err != nil {
			t.Fatalf("Run(%v) returned error: %v", id, err)
		}
	}

	if got := atomic.LoadInt32(&calls); got != int32(len(identities)) {
		t.Fatalf("handler executed %d times, want %d", got, len(identities))
	}
}

func TestRunInProgressConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	// A fresh in-progress row, as if another request is mid-handler.
	record := &Record{
		IdempotencyKey: "key-1",
		Scope:          "user-1",
		Path:           "/orders/1/pay",
		Method:         "POST",
		RequestHash:    "hash-a",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}

	body, code, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a",
		okHandler("ok", http.StatusOK))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if code != http.StatusConflict {
		t.Fatalf("code mismatch: got %d want %d", code, http.StatusConflict)
	}
	if !strings.Contains(string(body), "Request in progress") {
		t.Fatalf("unexpected conflict body: %s", body)
	}
}

func TestRunReclaimsStaleInProgressRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	record := &Record{
		IdempotencyKey: "key-1",
		Scope:          "user-1",
		Path:           "/orders/1/pay",
		Method:         "POST",
		RequestHash:    "hash-a",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	// Age the row past the lease window.
	stale := time.Now().Add(-10 * time.Minute)
	if err := db.Model(record).UpdateColumn("updated_at", stale).Error; err != nil {
		t.Fatalf("failed to age record: %v", err)
	}

	var calls int32
	body, code, err := svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a",
		func() (interface{}, int, error) {
			atomic.AddInt32(&calls, 1)
			return "reclaimed", http.StatusOK, nil
		})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("handler executed %d times, want 1", calls)
	}
	if code != http.StatusOK || !strings.Contains(string(body), "reclaimed") {
		t.Fatalf("unexpected result: (%d, %s)", code, body)
	}
}

func TestRunHandlerErrorPropagates(t *testing.T) {
	svc := NewService(newTestDB(t))

	wantErr := errors.New("gateway exploded")
	_, _, err := svc.Run("key-1", "user-1", "/payments/initialize", "POST", "hash-a",
		func() (interface{}, int, error) {
			return nil, 0, wantErr
		})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error mismatch: got %v want %v", err, wantErr)
	}

	// The row stays in progress, so an immediate retry is conflicted
	// rather than re-run.
	body, code, err := svc.Run("key-1", "user-1", "/payments/initialize", "POST", "hash-a",
		okHandler("ok", http.StatusOK))
	if err != nil {
		t.Fatalf("retry Run returned error: %v", err)
	}
	if code != http.StatusConflict || !strings.Contains(string(body), "Request in progress") {
		t.Fatalf("unexpected retry result: (%d, %s)", code, body)
	}
}

func TestRunConcurrentCallersSingleExecution(t *testing.T) {
	svc := NewService(newTestDB(t))

	var executions int32
	handler := func() (interface{}, int, error) {
		atomic.AddInt32(&executions, 1)
		time.Sleep(10 * time.Millisecond)
		return "ok", http.StatusOK, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Losers may see a replay, an in-progress conflict, or a
			// transient storage error; none of those may run the handler.
			_, _, _ = svc.Run("key-1", "user-1", "/orders/1/pay", "POST", "hash-a", handler)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Fatalf("handler executed %d times under concurrency, want 1", got)
	}
}

func TestSweepRemovesExpiredRows(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	expired := &Record{
		IdempotencyKey: "old-key",
		Scope:          "user-1",
		Path:           "/orders/1/pay",
		Method:         "POST",
		RequestHash:    "hash-a",
		ExpiresAt:      time.Now().Add(-time.Minute),
	}
	live := &Record{
		IdempotencyKey: "live-key",
		Scope:          "user-1",
		Path:           "/orders/1/pay",
		Method:         "POST",
		RequestHash:    "hash-a",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("failed to seed expired record: %v", err)
	}
	if err := db.Create(live).Error; err != nil {
		t.Fatalf("failed to seed live record: %v", err)
	}

	swept, err := svc.Sweep()
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept %d rows, want 1", swept)
	}

	var remaining int64
	if err := db.Model(&Record{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining rows mismatch: got %d want 1", remaining)
	}
}

func TestComputeRequestHash(t *testing.T) {
	a := ComputeRequestHash(map[string]string{"order_id": "1", "action": "pay"})
	b := ComputeRequestHash(map[string]string{"order_id": "1", "action": "pay"})
	c := ComputeRequestHash(map[string]string{"order_id": "1", "action": "cancel"})

	if a == "" {
		t.Fatal("expected non-empty hash")
	}
	if a != b {
		t.Fatalf("identical payloads hash differently: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different payloads produced the same hash")
	}
	if ComputeRequestHash(nil) != "" {
		t.Fatal("expected empty hash for nil payload")
	}
}

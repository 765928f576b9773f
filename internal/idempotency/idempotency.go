package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/avthrift/payments-api/pkg/response"
)

// ScopeAnonymous is the actor scope used when no authenticated user is
// attached to the request.
const ScopeAnonymous = "anon"

const (
	defaultTTL   = 24 * time.Hour
	defaultLease = 2 * time.Minute
)

// Handler is the side-effecting operation guarded by the ledger. It
// returns the response body and status code to cache.
type Handler func() (interface{}, int, error)

// Service runs handlers under idempotency protection backed by the
// durable ledger. It holds no in-process state; correctness under
// concurrent callers comes from the store's uniqueness constraint.
type Service struct {
	db    *Database
	ttl   time.Duration
	lease time.Duration
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		ttl:   defaultTTL,
		lease: defaultLease,
	}
}

// Run executes handler at most once for a given (scope, path, method, key)
// identity and returns the response body and status code, replaying the
// cached result on subsequent calls.
//
// Outcomes for a request that does not get to run the handler:
//   - same identity, different request hash: 409, key reuse conflict
//   - same identity, handler still running elsewhere: 409, in progress
//   - same identity, completed: the stored response, verbatim
//
// A handler error propagates to the caller and leaves the row in
// progress; a retry with the same key and hash is answered "in progress"
// until the lease window passes, after which the row can be reclaimed.
func (s *Service) Run(key, scope, path, method, requestHash string, handler Handler) ([]byte, int, error) {
	logger := log.With().
		Str("component", "idempotency").
		Str("scope", scope).
		Str("path", path).
		Logger()

	record := &Record{
		IdempotencyKey: key,
		Scope:          scope,
		Path:           path,
		Method:         method,
		RequestHash:    requestHash,
		ExpiresAt:      time.Now().Add(s.ttl),
	}

	if err := s.db.CreateRecord(record); err == nil {
		// We own the row: first use of this key.
		return s.invoke(record, handler)
	}

	// Insert lost to an existing row; inspect it.
	existing, err := s.db.GetRecord(scope, path, method, key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load ledger record: %w", err)
	}
	if existing == nil {
		// Row vanished between insert and read (expiry sweep); one retry.
		if err := s.db.CreateRecord(record); err != nil {
			return nil, 0, fmt.Errorf("failed to create ledger record: %w", err)
		}
		return s.invoke(record, handler)
	}

	if existing.RequestHash != requestHash {
		logger.Warn().Str("key", key).Msg("idempotency key reused with different payload")
		return conflictBody("Idempotency key reused with different request payload")
	}

	if existing.ResponseCode != 0 {
		logger.Info().Str("key", key).Int("code", existing.ResponseCode).Msg("replaying cached response")
		return existing.ResponseBody, existing.ResponseCode, nil
	}

	// In progress. A crashed handler would otherwise block this key
	// forever, so rows older than the lease window are up for grabs.
	staleBefore := time.Now().Add(-s.lease)
	if existing.UpdatedAt.Before(staleBefore) || existing.UpdatedAt.Equal(staleBefore) {
		reclaimed, err := s.db.ReclaimRecord(existing, requestHash, staleBefore, time.Now().Add(s.ttl))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to reclaim ledger record: %w", err)
		}
		if reclaimed {
			logger.Info().Str("key", key).Msg("reclaimed stale in-progress record")
			return s.invoke(existing, handler)
		}
	}

	logger.Info().Str("key", key).Msg("request in progress")
	return conflictBody("Request in progress")
}

func (s *Service) invoke(record *Record, handler Handler) ([]byte, int, error) {
	body, code, err := handler()
	if err != nil {
		// Deliberate: the row stays in progress so a retry cannot
		// double-run the handler before the lease expires.
		return nil, 0, err
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode handler response: %w", err)
	}

	if err := s.db.CompleteRecord(record, encoded, code); err != nil {
		return nil, 0, fmt.Errorf("failed to complete ledger record: %w", err)
	}

	return encoded, code, nil
}

// Sweep removes expired ledger rows and returns how many were deleted.
func (s *Service) Sweep() (int64, error) {
	return s.db.DeleteExpired(time.Now())
}

func conflictBody(detail string) ([]byte, int, error) {
	encoded, err := json.Marshal(response.ErrorBody{Detail: detail})
	if err != nil {
		return nil, 0, err
	}
	return encoded, http.StatusConflict, nil
}

// ComputeRequestHash returns a hex sha256 digest of the canonical JSON
// encoding of v, or the empty string when v cannot be encoded.
func ComputeRequestHash(v interface{}) string {
	if v == nil {
		return ""
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

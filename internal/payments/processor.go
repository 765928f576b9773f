package payments

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avthrift/payments-api/internal/idempotency"
	"github.com/avthrift/payments-api/internal/types"
)

// Processor is the background reconciliation loop. It sweeps expired
// idempotency ledger rows and re-verifies intents that have sat in a
// non-terminal state too long, so a missed webhook cannot leave a paid
// customer with a pending order forever.
type Processor struct {
	service      *Service
	idem         *idempotency.Service
	processDelay time.Duration // time between reconciliation passes
	staleAfter   time.Duration // age before an intent is re-verified
}

func NewProcessor(service *Service, idem *idempotency.Service) *Processor {
	return &Processor{
		service:      service,
		idem:         idem,
		processDelay: 5 * time.Minute,
		staleAfter:   15 * time.Minute,
	}
}

// Start begins the reconciliation loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "reconciliation_processor").Logger()
	logger.Info().Msg("starting reconciliation processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down reconciliation processor")
			return
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("reconciliation pass failed")
			}
		}
	}
}

func (p *Processor) runOnce(ctx context.Context) error {
	logger := log.With().Str("component", "reconciliation_processor").Logger()

	if swept, err := p.idem.Sweep(); err != nil {
		logger.Error().Err(err).Msg("failed to sweep expired ledger rows")
	} else if swept > 0 {
		logger.Info().Int64("swept", swept).Msg("removed expired ledger rows")
	}

	intents, err := p.service.db.ListStaleInitializedIntents(time.Now().Add(-p.staleAfter), 50)
	if err != nil {
		return err
	}

	logger.Info().Int("stale_count", len(intents)).Msg("re-verifying stale intents")

	for i := range intents {
		intent := &intents[i]
		resp, err := p.service.VerifyTransaction(ctx, intent.Reference)
		if err != nil {
			logger.Error().
				Err(err).
				Str("reference", intent.Reference).
				Msg("failed to verify stale intent")
			continue
		}
		if !resp.Status {
			continue
		}

		switch resp.Data.GatewayStatus {
		case "success":
			event := types.JSONMap{
				"event": "charge.success",
				"data": map[string]interface{}{
					"reference": intent.Reference,
					"amount":    float64(resp.Data.Amount),
				},
			}
			logger.Info().
				Str("reference", intent.Reference).
				Msg("stale intent confirmed successful, finalizing")
			p.service.Finalize(intent, event)
		case "failed":
			event := types.JSONMap{
				"event": "charge.failed",
				"data": map[string]interface{}{
					"reference": intent.Reference,
				},
			}
			p.service.MarkFailed(intent, event)
			logger.Info().
				Str("reference", intent.Reference).
				Msg("stale intent confirmed failed")
		}
	}

	return nil
}

package worker

// retry_cron.go
// Background goroutine that periodically redrives failed print jobs parked
// in the pending sorted set. Uses the circuit breaker state to avoid
// hammering a downed sidecar.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alquicaja/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the redrive goroutine.
type RetryCronConfig struct {
	RDB    *redis.Client
	CB     *infra.CircuitBreaker
	Worker *TicketWorker
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// re-attempts due print jobs through the circuit breaker. It respects the
// context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely — don't hammer a downed sidecar
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	now := fmt.Sprintf("%d", time.Now().Unix())
	entries, err := cfg.RDB.ZRangeByScore(ctx, PendingTicketsKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: retryBatchSize,
	}).Result()
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending tickets")
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Info().Int("count", len(entries)).Msg("retry_cron: redriving pending tickets")

	for _, raw := range entries {
		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		// Claim the entry; if another instance already took it, skip.
		removed, err := cfg.RDB.ZRem(ctx, PendingTicketsKey, raw).Result()
		if err != nil || removed == 0 {
			continue
		}

		// Process reschedules or dead-letters on failure.
		cfg.Worker.Process(ctx, json.RawMessage(raw))
	}
}

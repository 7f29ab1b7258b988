package worker

// ticket_worker.go
// Processes receipt-printing jobs from QueueTickets. Calls the printing
// sidecar through the circuit breaker; failed prints are parked in a Redis
// sorted set scored by next-attempt time, and the retry cron redrives them.
// After MaxTicketAttempts the job lands in the DLQ.

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
	// PendingTicketsKey is the sorted set of failed prints awaiting redrive.
	// Score is the unix timestamp of the next attempt.
	PendingTicketsKey = "tickets:pendientes"

	MaxTicketAttempts = 3
)

// TicketJobPayload is the job envelope sent to QueueTickets.
type TicketJobPayload struct {
	MovimientoID    string `json:"movimiento_id"`
	NumeroOperacion string `json:"numero_operacion"`
	Tipo            string `json:"tipo"`
	MetodoPago      string `json:"metodo_pago"`
	Monto           string `json:"monto"`
	Concepto        string `json:"concepto"`
	Fecha           string `json:"fecha"`
	Attempts        int    `json:"attempts,omitempty"`
}

// TicketWorker prints movement receipts via the sidecar.
type TicketWorker struct {
	tickets *infra.TicketsClient
	cb      *infra.CircuitBreaker
	rdb     *redis.Client
}

func NewTicketWorker(tickets *infra.TicketsClient, cb *infra.CircuitBreaker, rdb *redis.Client) *TicketWorker {
	return &TicketWorker{tickets: tickets, cb: cb, rdb: rdb}
}

// Process handles a single print job. A failed attempt never blocks the
// ledger; it is rescheduled or, past the attempt cap, dead-lettered.
func (w *TicketWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload TicketJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("ticket_worker: invalid payload")
		return
	}

	err := w.cb.Execute(func() error {
		resp, err := w.tickets.Imprimir(ctx, infra.TicketPayload{
			NumeroOperacion: payload.NumeroOperacion,
			Tipo:            payload.Tipo,
			MetodoPago:      payload.MetodoPago,
			Monto:           payload.Monto,
			Concepto:        payload.Concepto,
			Fecha:           payload.Fecha,
		})
		if err != nil {
			return err
		}
		if resp.Estado != "impreso" {
			return fmt.Errorf("sidecar: %s", resp.Detalle)
		}
		return nil
	})
	if err == nil {
		log.Info().
			Str("numero_operacion", payload.NumeroOperacion).
			Msg("ticket_worker: ticket printed")
		return
	}

	payload.Attempts++
	if payload.Attempts >= MaxTicketAttempts {
		data, _ := json.Marshal(payload)
		SendToDLQ(ctx, w.rdb, QueueTickets, "ticket", data,
			fmt.Sprintf("max attempts (%d) exceeded: %v", MaxTicketAttempts, err),
			payload.Attempts)
		return
	}

	w.scheduleRetry(ctx, payload, err)
}

// scheduleRetry parks the job in the pending set with exponential backoff
// (30s, 60s, ...). The retry cron picks it up when due.
func (w *TicketWorker) scheduleRetry(ctx context.Context, payload TicketJobPayload, cause error) {
	wait := time.Duration(1<<uint(payload.Attempts-1)) * 30 * time.Second
	nextAt := time.Now().Add(wait)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("ticket_worker: failed to marshal retry payload")
		return
	}

	if err := w.rdb.ZAdd(ctx, PendingTicketsKey, redis.Z{
		Score:  float64(nextAt.Unix()),
		Member: data,
	}).Err(); err != nil {
		log.Error().Err(err).Msg("ticket_worker: failed to schedule retry")
		return
	}

	log.Warn().
		Err(cause).
		Str("numero_operacion", payload.NumeroOperacion).
		Int("attempt", payload.Attempts).
		Time("next_attempt_at", nextAt).
		Msg("ticket_worker: print failed, retry scheduled")
}

package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alquicaja/internal/infra"
	"alquicaja/internal/model"
	"alquicaja/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ── TicketWorker ─────────────────────────────────────────────────────────────

func TestTicketWorker_Imprime(t *testing.T) {
	var received infra.TicketPayload
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/imprimir", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(infra.TicketResponse{Estado: "impreso"})
	}))
	defer sidecar.Close()

	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	w := worker.NewTicketWorker(infra.NewTicketsClient(sidecar.URL), cb, nil)

	payload := worker.TicketJobPayload{
		MovimientoID:    uuid.NewString(),
		NumeroOperacion: "20260830-0001",
		Tipo:            model.MovIngreso,
		MetodoPago:      model.MetodoEfectivo,
		Monto:           "50.00",
		Concepto:        "Alquiler esquí",
		Fecha:           "2026-08-30",
	}
	w.Process(context.Background(), mustJSON(t, payload))

	assert.Equal(t, "20260830-0001", received.NumeroOperacion)
	assert.Equal(t, "50.00", received.Monto)
	assert.Equal(t, infra.CBClosed, cb.State())
}

func TestTicketWorker_PayloadInvalido_NoPanic(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	w := worker.NewTicketWorker(infra.NewTicketsClient("http://localhost:19999"), cb, nil)

	assert.NotPanics(t, func() {
		w.Process(context.Background(), json.RawMessage(`{not json`))
	})
	// A bad payload is dropped without touching the breaker
	assert.Equal(t, infra.CBClosed, cb.State())
}

// ── ReporteWorker ────────────────────────────────────────────────────────────

type stubCierreReader struct {
	cierres     map[uuid.UUID]*model.CierreCaja
	movimientos []model.MovimientoCaja
}

func (s *stubCierreReader) FindCierreByID(_ context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	c, ok := s.cierres[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (s *stubCierreReader) ListMovimientos(context.Context, time.Time) ([]model.MovimientoCaja, error) {
	return s.movimientos, nil
}

func buildCierre() *model.CierreCaja {
	fecha, _ := time.Parse("2006-01-02", "2026-08-30")
	return &model.CierreCaja{
		ID:                uuid.New(),
		SesionCajaID:      uuid.New(),
		Fecha:             fecha,
		NumeroCierre:      1,
		EfectivoContado:   decimal.RequireFromString("128.00"),
		TarjetaContada:    decimal.RequireFromString("30.00"),
		EfectivoEsperado:  decimal.RequireFromString("130.00"),
		TarjetaEsperada:   decimal.RequireFromString("30.00"),
		DescuadreEfectivo: decimal.RequireFromString("-2.00"),
		DescuadreTarjeta:  decimal.Zero,
		DescuadreTotal:    decimal.RequireFromString("-2.00"),
		MovimientosCount:  2,
		CerradoPor:        uuid.New(),
		ClosedAt:          time.Now(),
	}
}

func TestReporteWorker_GeneraPDF(t *testing.T) {
	tmpDir := t.TempDir()
	cierre := buildCierre()
	repo := &stubCierreReader{
		cierres: map[uuid.UUID]*model.CierreCaja{cierre.ID: cierre},
		movimientos: []model.MovimientoCaja{
			{Tipo: model.MovIngreso, MetodoPago: model.MetodoEfectivo, Concepto: "Alquiler", NumeroOperacion: "20260830-0001", Monto: decimal.RequireFromString("50.00")},
			{Tipo: model.MovEgreso, MetodoPago: model.MetodoEfectivo, Concepto: "Proveedor", NumeroOperacion: "20260830-0002", Monto: decimal.RequireFromString("20.00")},
		},
	}

	// No supervisor email configured: PDF only, no mail attempt
	w := worker.NewReporteWorker(repo, nil, tmpDir, "")
	w.Process(context.Background(), mustJSON(t, worker.ReporteJobPayload{CierreID: cierre.ID.String()}))

	pdfPath := filepath.Join(tmpDir, "arqueo_2026-08-30_1.pdf")
	info, err := os.Stat(pdfPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(100))
}

func TestReporteWorker_CierreRevertido_Skip(t *testing.T) {
	tmpDir := t.TempDir()
	repo := &stubCierreReader{cierres: map[uuid.UUID]*model.CierreCaja{}}

	w := worker.NewReporteWorker(repo, nil, tmpDir, "")
	assert.NotPanics(t, func() {
		w.Process(context.Background(), mustJSON(t, worker.ReporteJobPayload{CierreID: uuid.NewString()}))
	})

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReporteWorker_CierreIDInvalido_NoPanic(t *testing.T) {
	repo := &stubCierreReader{cierres: map[uuid.UUID]*model.CierreCaja{}}
	w := worker.NewReporteWorker(repo, nil, t.TempDir(), "")

	assert.NotPanics(t, func() {
		w.Process(context.Background(), mustJSON(t, worker.ReporteJobPayload{CierreID: "not-a-uuid"}))
	})
}

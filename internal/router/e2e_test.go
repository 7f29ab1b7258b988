//go:build integration

package router_test

// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v
//
// Covered flows:
//   - Full day cycle: abrir → movimientos → resumen → cerrar → descuadres
//   - Double open rejected by the partial unique index (409)
//   - Ledger locked after close (422), reopened by revert
//   - Closure numbering survives a close/revert/close round trip
//   - Paginated search with text and metodo_pago filters
//   - Role enforcement on supervision-only routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alquicaja/internal/config"
	"alquicaja/internal/dto"
	"alquicaja/internal/infra"
	"alquicaja/internal/middleware"
	"alquicaja/internal/router"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

const testSecret = "test-secret-key"

// mintToken issues a signed JWT the way the central backoffice would.
func mintToken(t *testing.T, rol string) string {
	t.Helper()
	pdv := 1
	claims := middleware.JWTClaims{
		UserID:       uuid.NewString(),
		Username:     rol + "@e2e.test",
		Rol:          rol,
		PuntoDeVenta: &pdv,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server     *httptest.Server
	cajero     string // JWT with rol cajero
	supervisor string // JWT with rol supervisor
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	// Start Postgres container
	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("alquicaja_test"),
		tcPostgres.WithUsername("alquicaja"),
		tcPostgres.WithPassword("alquicaja"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start Redis container
	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:              8000,
		Env:               "test",
		JWTSecret:         testSecret,
		DatabaseURL:       pgURL,
		RedisURL:          rdURL,
		TicketsSidecarURL: "http://localhost:9999", // unused, jobs queue but no worker runs
		TarifasURL:        "http://localhost:9999",
		PuntoDeVenta:      1,
		PDFStoragePath:    t.TempDir(),
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{})
	r := router.New(cfg, db, rdb, cb)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{
		server:     srv,
		cajero:     mintToken(t, "cajero"),
		supervisor: mintToken(t, "supervisor"),
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func registrarE2E(t *testing.T, env *testEnv, tipo, metodo, monto string) dto.MovimientoResponse {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/caja/movimiento",
		jsonBody(t, map[string]any{
			"tipo":        tipo,
			"metodo_pago": metodo,
			"categoria":   "alquiler",
			"concepto":    "Alquiler equipo",
			"monto":       monto,
		}),
		env.cajero,
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var mov dto.MovimientoResponse
	decodeJSON(t, resp, &mov)
	return mov
}

func TestE2E_CicloCompletoDeCaja(t *testing.T) {
	env := setupTestEnv(t)

	// 1. Abrir caja con saldo inicial 100
	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"saldo_inicial": "100.00"}), env.cajero)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion dto.SesionCajaResponse
	decodeJSON(t, abrirResp, &sesion)
	assert.Equal(t, "abierta", sesion.Estado)
	assert.Equal(t, 1, sesion.PuntoDeVenta)

	// 2. Segunda apertura rechazada por el índice parcial
	dupResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"saldo_inicial": "50.00"}), env.cajero)
	require.Equal(t, http.StatusConflict, dupResp.StatusCode)
	dupResp.Body.Close()

	// 3. Sesión activa visible
	activaResp := do(t, env.server, "GET", "/v1/caja/activa", nil, env.cajero)
	require.Equal(t, http.StatusOK, activaResp.StatusCode)
	var activa dto.SesionCajaResponse
	decodeJSON(t, activaResp, &activa)
	assert.Equal(t, sesion.ID, activa.ID)

	// 4. Movimientos del día: +50 efectivo, +30 tarjeta, -20 efectivo
	m1 := registrarE2E(t, env, "ingreso", "efectivo", "50.00")
	registrarE2E(t, env, "ingreso", "tarjeta", "30.00")
	resp := do(t, env.server, "POST", "/v1/caja/movimiento",
		jsonBody(t, map[string]any{
			"tipo":        "egreso",
			"metodo_pago": "efectivo",
			"categoria":   "proveedores",
			"concepto":    "Pago proveedor",
			"monto":       "20.00",
		}),
		env.cajero,
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	assert.Regexp(t, `^\d{8}-0001$`, m1.NumeroOperacion)

	// 5. Resumen en tiempo real
	resumenResp := do(t, env.server, "GET", "/v1/caja/resumen", nil, env.cajero)
	require.Equal(t, http.StatusOK, resumenResp.StatusCode)
	var resumen dto.ResumenCajaResponse
	decodeJSON(t, resumenResp, &resumen)
	assert.Equal(t, "80", resumen.IngresosBrutos.String())
	assert.Equal(t, "20", resumen.TotalSalidas.String())
	assert.Equal(t, "60", resumen.BalanceNetoDia.String())
	assert.Equal(t, "130", resumen.EfectivoEsperado.String())
	assert.Equal(t, "30", resumen.TarjetaEsperada.String())
	assert.Equal(t, 3, resumen.MovimientosCount)

	// 6. Cierre con arqueo: faltan 2 pesos en efectivo
	cerrarResp := do(t, env.server, "POST", "/v1/caja/cerrar",
		jsonBody(t, map[string]any{
			"efectivo_contado": "128.00",
			"tarjeta_contada":  "30.00",
		}),
		env.cajero,
	)
	require.Equal(t, http.StatusCreated, cerrarResp.StatusCode)
	var cierre dto.CierreCajaResponse
	decodeJSON(t, cerrarResp, &cierre)
	assert.Equal(t, 1, cierre.NumeroCierre)
	assert.Equal(t, "-2", cierre.DescuadreEfectivo.String())
	assert.Equal(t, "0", cierre.DescuadreTarjeta.String())
	assert.Equal(t, "-2", cierre.DescuadreTotal.String())
	assert.Equal(t, 3, cierre.MovimientosCount)

	// 7. Libro bloqueado tras el cierre
	lockedResp := do(t, env.server, "POST", "/v1/caja/movimiento",
		jsonBody(t, map[string]any{
			"tipo":        "ingreso",
			"metodo_pago": "efectivo",
			"categoria":   "alquiler",
			"concepto":    "Tarde",
			"monto":       "10.00",
		}),
		env.cajero,
	)
	require.Equal(t, http.StatusUnprocessableEntity, lockedResp.StatusCode)
	lockedResp.Body.Close()

	// 8. Reversión del cierre reabre la sesión
	revertResp := do(t, env.server, "DELETE", "/v1/caja/cierres/"+cierre.ID, nil, env.supervisor)
	require.Equal(t, http.StatusOK, revertResp.StatusCode)
	var reabierta dto.SesionCajaResponse
	decodeJSON(t, revertResp, &reabierta)
	assert.Equal(t, "abierta", reabierta.Estado)
	assert.Nil(t, reabierta.ClosedAt)

	// 9. La numeración de operaciones continúa donde quedó
	m4 := registrarE2E(t, env, "ingreso", "efectivo", "2.00")
	assert.Regexp(t, `-0004$`, m4.NumeroOperacion)

	// 10. El segundo cierre consume el siguiente número
	cerrar2Resp := do(t, env.server, "POST", "/v1/caja/cerrar",
		jsonBody(t, map[string]any{
			"efectivo_contado": "132.00",
			"tarjeta_contada":  "30.00",
		}),
		env.cajero,
	)
	require.Equal(t, http.StatusCreated, cerrar2Resp.StatusCode)
	var cierre2 dto.CierreCajaResponse
	decodeJSON(t, cerrar2Resp, &cierre2)
	assert.Equal(t, 2, cierre2.NumeroCierre)
	assert.True(t, cierre2.DescuadreEfectivo.IsZero())

	// 11. El cierre revertido no aparece en el historial
	listResp := do(t, env.server, "GET", "/v1/caja/cierres", nil, env.supervisor)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var cierres dto.CierresResponse
	decodeJSON(t, listResp, &cierres)
	assert.Equal(t, int64(1), cierres.Total)
	require.Len(t, cierres.Results, 1)
	assert.Equal(t, cierre2.ID, cierres.Results[0].ID)
}

func TestE2E_BusquedaPaginada(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"saldo_inicial": "0.00"}), env.cajero)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	abrirResp.Body.Close()

	conceptos := []string{"Alquiler esquí", "Alquiler tabla", "Depósito garantía", "Alquiler botas", "Venta guantes"}
	for i, c := range conceptos {
		metodo := "efectivo"
		if i%2 == 1 {
			metodo = "tarjeta"
		}
		resp := do(t, env.server, "POST", "/v1/caja/movimiento",
			jsonBody(t, map[string]any{
				"tipo":        "ingreso",
				"metodo_pago": metodo,
				"categoria":   "alquiler",
				"concepto":    c,
				"monto":       "10.00",
			}),
			env.cajero,
		)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	// Text filter with pagination: 3 "Alquiler" across two pages
	p1 := do(t, env.server, "GET", "/v1/caja/buscar?texto=alquiler&limit=2", nil, env.supervisor)
	require.Equal(t, http.StatusOK, p1.StatusCode)
	var page1 dto.BusquedaResponse
	decodeJSON(t, p1, &page1)
	assert.Equal(t, int64(3), page1.Total)
	assert.Len(t, page1.Results, 2)

	p2 := do(t, env.server, "GET", "/v1/caja/buscar?texto=alquiler&limit=2&skip=2", nil, env.supervisor)
	require.Equal(t, http.StatusOK, p2.StatusCode)
	var page2 dto.BusquedaResponse
	decodeJSON(t, p2, &page2)
	assert.Equal(t, int64(3), page2.Total)
	assert.Len(t, page2.Results, 1)

	// Method filter
	tj := do(t, env.server, "GET", "/v1/caja/buscar?metodo_pago=tarjeta", nil, env.supervisor)
	require.Equal(t, http.StatusOK, tj.StatusCode)
	var porMetodo dto.BusquedaResponse
	decodeJSON(t, tj, &porMetodo)
	assert.Equal(t, int64(2), porMetodo.Total)

	// Empty result is 200 with total 0
	nada := do(t, env.server, "GET", "/v1/caja/buscar?texto=noexiste", nil, env.supervisor)
	require.Equal(t, http.StatusOK, nada.StatusCode)
	var vacio dto.BusquedaResponse
	decodeJSON(t, nada, &vacio)
	assert.Equal(t, int64(0), vacio.Total)
	assert.Empty(t, vacio.Results)
}

func TestE2E_RolesYAutenticacion(t *testing.T) {
	env := setupTestEnv(t)

	// Sin token
	noAuth := do(t, env.server, "GET", "/v1/caja/activa", nil, "")
	assert.Equal(t, http.StatusUnauthorized, noAuth.StatusCode)
	noAuth.Body.Close()

	// Cajero no puede ver el historial de cierres ni revertir
	cierres := do(t, env.server, "GET", "/v1/caja/cierres", nil, env.cajero)
	assert.Equal(t, http.StatusForbidden, cierres.StatusCode)
	cierres.Body.Close()

	revert := do(t, env.server, "DELETE", "/v1/caja/cierres/"+uuid.NewString(), nil, env.cajero)
	assert.Equal(t, http.StatusForbidden, revert.StatusCode)
	revert.Body.Close()

	// Supervisor puede: revertir un cierre inexistente es 404, no 403
	notFound := do(t, env.server, "DELETE", "/v1/caja/cierres/"+uuid.NewString(), nil, env.supervisor)
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
	notFound.Body.Close()

	// Health es pública
	health := do(t, env.server, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, health.StatusCode)
	health.Body.Close()
}

func TestE2E_CerrarSinCajaAbierta(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, "POST", "/v1/caja/cerrar",
		jsonBody(t, map[string]any{
			"efectivo_contado": "0.00",
			"tarjeta_contada":  "0.00",
		}),
		env.cajero,
	)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alquicaja/internal/dto"
	"alquicaja/internal/model"
	"alquicaja/internal/repository"
	"alquicaja/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	GetActiva(ctx context.Context) (*dto.SesionCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	CambiarMetodoPago(ctx context.Context, movimientoID uuid.UUID, metodo string) (*dto.MovimientoResponse, error)
	ListarMovimientos(ctx context.Context, fecha time.Time) ([]dto.MovimientoResponse, error)
	Resumen(ctx context.Context, fecha time.Time) (*dto.ResumenCajaResponse, error)
	Buscar(ctx context.Context, f dto.BusquedaFilter) (*dto.BusquedaResponse, error)
}

type cajaService struct {
	repo         repository.CajaRepository
	dispatcher   *worker.Dispatcher
	puntoDeVenta int
}

func NewCajaService(repo repository.CajaRepository, dispatcher *worker.Dispatcher, puntoDeVenta int) CajaService {
	return &cajaService{repo: repo, dispatcher: dispatcher, puntoDeVenta: puntoDeVenta}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// soloFecha truncates a timestamp to its business-date component.
func soloFecha(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// Opening is compare-and-set: the open-session check and the insert share one
// transaction, and the partial unique index on (punto_de_venta) WHERE
// estado='abierta' backstops the race between two concurrent opens.

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if req.SaldoInicial.IsNegative() {
		return nil, validacionf("el saldo inicial no puede ser negativo")
	}

	sesion := &model.SesionCaja{
		PuntoDeVenta:  s.puntoDeVenta,
		Fecha:         soloFecha(time.Now()),
		SaldoInicial:  req.SaldoInicial,
		AbiertaPor:    usuarioID,
		Estado:        model.SesionAbierta,
		Observaciones: req.Observaciones,
		OpenedAt:      time.Now(),
	}

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		existing, err := s.repo.FindSesionAbiertaTx(tx, s.puntoDeVenta)
		if err == nil {
			return conflictof("ya existe una caja abierta (sesión %s)", existing.ID)
		}
		if !repository.IsNotFound(err) {
			return err
		}
		return s.repo.CreateSesionTx(tx, sesion)
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, conflictof("ya existe una caja abierta")
		}
		return nil, err
	}

	return sesionToResponse(sesion), nil
}

// ── GetActiva ─────────────────────────────────────────────────────────────────

func (s *cajaService) GetActiva(ctx context.Context) (*dto.SesionCajaResponse, error) {
	sesion, err := s.repo.FindSesionAbierta(ctx, s.puntoDeVenta)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sesionToResponse(sesion), nil
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// An open session is a hard precondition; there is no persist-with-warning
// path. The numero de operación is claimed inside the insert transaction.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	if err := validarMovimiento(&req); err != nil {
		return nil, err
	}

	var referencia *uuid.UUID
	if req.ReferenciaID != nil {
		ref, err := uuid.Parse(*req.ReferenciaID)
		if err != nil {
			return nil, validacionf("referencia_id inválido")
		}
		referencia = &ref
	}

	var mov model.MovimientoCaja
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionAbiertaTx(tx, s.puntoDeVenta)
		if err != nil {
			if repository.IsNotFound(err) {
				return precondicionf("no hay una caja abierta; abra la caja antes de registrar movimientos")
			}
			return err
		}

		seq, err := s.repo.NextNumeroOperacionTx(tx, sesion.Fecha)
		if err != nil {
			return err
		}

		mov = model.MovimientoCaja{
			SesionCajaID:    sesion.ID,
			Fecha:           sesion.Fecha,
			Tipo:            req.Tipo,
			MetodoPago:      req.MetodoPago,
			Categoria:       req.Categoria,
			Concepto:        strings.TrimSpace(req.Concepto),
			Observaciones:   req.Observaciones,
			NumeroOperacion: numeroOperacion(sesion.Fecha, seq),
			Monto:           req.Monto,
			ReferenciaID:    referencia,
			CreatedAt:       time.Now(),
		}
		return s.repo.CreateMovimientoTx(tx, &mov)
	})
	if err != nil {
		return nil, err
	}

	// Ticket printing is an external collaborator; enqueue best-effort.
	if s.dispatcher != nil {
		_ = s.dispatcher.EnqueueTicket(ctx, worker.TicketJobPayload{
			MovimientoID:    mov.ID.String(),
			NumeroOperacion: mov.NumeroOperacion,
			Tipo:            mov.Tipo,
			MetodoPago:      mov.MetodoPago,
			Monto:           mov.Monto.StringFixed(2),
			Concepto:        mov.Concepto,
			Fecha:           mov.Fecha.Format("2006-01-02"),
		})
	}

	resp := movimientoToResponse(&mov)
	return &resp, nil
}

func validarMovimiento(req *dto.MovimientoRequest) error {
	if !req.Monto.IsPositive() {
		return validacionf("el monto debe ser mayor a 0")
	}
	if strings.TrimSpace(req.Concepto) == "" {
		return validacionf("el concepto no puede estar vacío")
	}
	if !model.CategoriaValida(req.Categoria) {
		return validacionf("categoría desconocida: %q", req.Categoria)
	}
	switch req.Tipo {
	case model.MovIngreso, model.MovEgreso, model.MovDevolucion:
	default:
		return validacionf("tipo de movimiento desconocido: %q", req.Tipo)
	}
	switch req.MetodoPago {
	case model.MetodoEfectivo, model.MetodoTarjeta:
	default:
		return validacionf("método de pago desconocido: %q", req.MetodoPago)
	}
	return nil
}

func numeroOperacion(fecha time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", fecha.Format("20060102"), seq)
}

// ── CambiarMetodoPago ─────────────────────────────────────────────────────────
// Idempotent single-field correction. Aggregates are derived on read, so no
// cached figure needs patching here.

func (s *cajaService) CambiarMetodoPago(ctx context.Context, movimientoID uuid.UUID, metodo string) (*dto.MovimientoResponse, error) {
	if metodo != model.MetodoEfectivo && metodo != model.MetodoTarjeta {
		return nil, validacionf("método de pago desconocido: %q", metodo)
	}

	mov, err := s.repo.FindMovimientoByID(ctx, movimientoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, noEncontradof("movimiento %s", movimientoID)
		}
		return nil, err
	}

	if mov.MetodoPago != metodo {
		if err := s.repo.UpdateMetodoPago(ctx, movimientoID, metodo); err != nil {
			if repository.IsNotFound(err) {
				return nil, noEncontradof("movimiento %s", movimientoID)
			}
			return nil, err
		}
		mov.MetodoPago = metodo
	}

	resp := movimientoToResponse(mov)
	return &resp, nil
}

// ── ListarMovimientos ─────────────────────────────────────────────────────────

func (s *cajaService) ListarMovimientos(ctx context.Context, fecha time.Time) ([]dto.MovimientoResponse, error) {
	movs, err := s.repo.ListMovimientos(ctx, soloFecha(fecha))
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoToResponse(&movs[i]))
	}
	return out, nil
}

// ── Resumen ───────────────────────────────────────────────────────────────────
// Recomputed from the full movement set on every call. O(n) per read, which is
// the right trade for daily, bounded-volume reconciliation data.

func (s *cajaService) Resumen(ctx context.Context, fecha time.Time) (*dto.ResumenCajaResponse, error) {
	fecha = soloFecha(fecha)

	saldoInicial := decimal.Zero
	if sesion, err := s.repo.FindSesionPorFecha(ctx, fecha); err == nil && sesion != nil {
		saldoInicial = sesion.SaldoInicial
	} else if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}

	sums, err := s.repo.SumMovimientos(ctx, fecha)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMovimientos(ctx, fecha)
	if err != nil {
		return nil, err
	}

	resumen := buildResumen(fecha, saldoInicial, sums, int(count))
	return resumen, nil
}

// buildResumen derives every expected figure from positive amounts grouped by
// (tipo, metodo_pago); direction comes from tipo alone.
func buildResumen(fecha time.Time, saldoInicial decimal.Decimal, sums repository.SumasPorMetodo, count int) *dto.ResumenCajaResponse {
	suma := func(tipo, metodo string) decimal.Decimal {
		if porMetodo, ok := sums[tipo]; ok {
			if v, ok := porMetodo[metodo]; ok {
				return v
			}
		}
		return decimal.Zero
	}
	sumaTipo := func(tipo string) decimal.Decimal {
		return suma(tipo, model.MetodoEfectivo).Add(suma(tipo, model.MetodoTarjeta))
	}

	ingresos := sumaTipo(model.MovIngreso)
	salidas := sumaTipo(model.MovEgreso).Add(sumaTipo(model.MovDevolucion))

	salidasEfectivo := suma(model.MovEgreso, model.MetodoEfectivo).
		Add(suma(model.MovDevolucion, model.MetodoEfectivo))
	salidasTarjeta := suma(model.MovEgreso, model.MetodoTarjeta).
		Add(suma(model.MovDevolucion, model.MetodoTarjeta))

	return &dto.ResumenCajaResponse{
		Fecha:            fecha.Format("2006-01-02"),
		SaldoInicial:     saldoInicial,
		IngresosBrutos:   ingresos,
		TotalSalidas:     salidas,
		BalanceNetoDia:   ingresos.Sub(salidas),
		EfectivoEsperado: saldoInicial.Add(suma(model.MovIngreso, model.MetodoEfectivo)).Sub(salidasEfectivo),
		TarjetaEsperada:  suma(model.MovIngreso, model.MetodoTarjeta).Sub(salidasTarjeta),
		MovimientosCount: count,
	}
}

// ── Buscar ────────────────────────────────────────────────────────────────────

func (s *cajaService) Buscar(ctx context.Context, f dto.BusquedaFilter) (*dto.BusquedaResponse, error) {
	if f.Hasta.Before(f.Desde) {
		return nil, validacionf("rango de fechas invertido")
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.MetodoPago != "" && f.MetodoPago != model.MetodoEfectivo && f.MetodoPago != model.MetodoTarjeta {
		return nil, validacionf("método de pago desconocido: %q", f.MetodoPago)
	}
	f.Desde = soloFecha(f.Desde)
	f.Hasta = soloFecha(f.Hasta)

	movs, total, err := s.repo.SearchMovimientos(ctx, f)
	if err != nil {
		return nil, err
	}

	results := make([]dto.MovimientoResponse, 0, len(movs))
	for i := range movs {
		results = append(results, movimientoToResponse(&movs[i]))
	}
	return &dto.BusquedaResponse{Results: results, Total: total, Skip: f.Skip, Limit: f.Limit}, nil
}

// ── Mappers ───────────────────────────────────────────────────────────────────

func sesionToResponse(s *model.SesionCaja) *dto.SesionCajaResponse {
	resp := &dto.SesionCajaResponse{
		ID:            s.ID.String(),
		PuntoDeVenta:  s.PuntoDeVenta,
		Fecha:         s.Fecha.Format("2006-01-02"),
		SaldoInicial:  s.SaldoInicial,
		AbiertaPor:    s.AbiertaPor.String(),
		Estado:        s.Estado,
		Observaciones: s.Observaciones,
		OpenedAt:      s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func movimientoToResponse(m *model.MovimientoCaja) dto.MovimientoResponse {
	resp := dto.MovimientoResponse{
		ID:              m.ID.String(),
		Fecha:           m.Fecha.Format("2006-01-02"),
		Tipo:            m.Tipo,
		MetodoPago:      m.MetodoPago,
		Categoria:       m.Categoria,
		Concepto:        m.Concepto,
		Observaciones:   m.Observaciones,
		NumeroOperacion: m.NumeroOperacion,
		Monto:           m.Monto,
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
	}
	if m.ReferenciaID != nil {
		ref := m.ReferenciaID.String()
		resp.ReferenciaID = &ref
	}
	return resp
}

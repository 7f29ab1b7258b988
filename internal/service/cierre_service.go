package service

import (
	"context"
	"time"

	"alquicaja/internal/dto"
	"alquicaja/internal/model"
	"alquicaja/internal/repository"
	"alquicaja/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type CierreService interface {
	CerrarCaja(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error)
	RevertirCierre(ctx context.Context, cierreID uuid.UUID) (*dto.SesionCajaResponse, error)
	ListarCierres(ctx context.Context, page, limit int) (*dto.CierresResponse, error)
}

type cierreService struct {
	repo       repository.CajaRepository
	dispatcher *worker.Dispatcher
}

func NewCierreService(repo repository.CajaRepository, dispatcher *worker.Dispatcher) CierreService {
	return &cierreService{repo: repo, dispatcher: dispatcher}
}

// ── CerrarCaja ────────────────────────────────────────────────────────────────
// Everything happens in one transaction over a locked session row: expected
// totals are recomputed from the ledger, descuadres derived, the cierre
// inserted and the session flipped to cerrada. A movement insert racing the
// close either commits before the sums are taken or blocks on the row lock
// and then fails the open-session precondition.

func (s *cierreService) CerrarCaja(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error) {
	if req.EfectivoContado.IsNegative() || req.TarjetaContada.IsNegative() {
		return nil, validacionf("los montos contados no pueden ser negativos")
	}

	fecha := soloFecha(time.Now())
	if req.Fecha != "" {
		parsed, err := time.Parse("2006-01-02", req.Fecha)
		if err != nil {
			return nil, validacionf("fecha inválida: %q", req.Fecha)
		}
		fecha = soloFecha(parsed)
	}

	var cierre model.CierreCaja
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionAbiertaPorFechaTx(tx, fecha)
		if err != nil {
			if !repository.IsNotFound(err) {
				return err
			}
			// Distinguish "never opened" from "already closed". Both are the
			// same wrong state for closing: no open session for the date.
			if _, ferr := s.repo.FindSesionPorFechaTx(tx, fecha); ferr == nil {
				return precondicionf("la caja del %s ya está cerrada", fecha.Format("2006-01-02"))
			}
			return precondicionf("no hay sesión de caja para el %s", fecha.Format("2006-01-02"))
		}

		sums, err := s.repo.SumMovimientosTx(tx, fecha)
		if err != nil {
			return err
		}
		count, err := s.repo.CountMovimientosTx(tx, fecha)
		if err != nil {
			return err
		}
		resumen := buildResumen(fecha, sesion.SaldoInicial, sums, int(count))

		descEfectivo := req.EfectivoContado.Sub(resumen.EfectivoEsperado)
		descTarjeta := req.TarjetaContada.Sub(resumen.TarjetaEsperada)

		// The session counts every close it ever had, reverted ones included,
		// so a close-revert-close day numbers its cierres 1, 2.
		sesion.CierresRealizados++

		now := time.Now()
		cierre = model.CierreCaja{
			SesionCajaID:      sesion.ID,
			Fecha:             fecha,
			NumeroCierre:      sesion.CierresRealizados,
			EfectivoContado:   req.EfectivoContado,
			TarjetaContada:    req.TarjetaContada,
			EfectivoEsperado:  resumen.EfectivoEsperado,
			TarjetaEsperada:   resumen.TarjetaEsperada,
			DescuadreEfectivo: descEfectivo,
			DescuadreTarjeta:  descTarjeta,
			DescuadreTotal:    descEfectivo.Add(descTarjeta),
			MovimientosCount:  int(count),
			Observaciones:     req.Observaciones,
			CerradoPor:        usuarioID,
			ClosedAt:          now,
		}
		if err := s.repo.CreateCierreTx(tx, &cierre); err != nil {
			return err
		}

		sesion.Estado = model.SesionCerrada
		sesion.ClosedAt = &now
		return s.repo.UpdateSesionTx(tx, sesion)
	})
	if err != nil {
		return nil, err
	}

	if !cierre.DescuadreTotal.IsZero() {
		log.Warn().
			Str("fecha", fecha.Format("2006-01-02")).
			Str("descuadre_efectivo", cierre.DescuadreEfectivo.StringFixed(2)).
			Str("descuadre_tarjeta", cierre.DescuadreTarjeta.StringFixed(2)).
			Msg("cierre con descuadre")
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.EnqueueReporte(ctx, worker.ReporteJobPayload{CierreID: cierre.ID.String()})
	}

	resp := cierreToResponse(&cierre)
	return &resp, nil
}

// ── RevertirCierre ────────────────────────────────────────────────────────────
// Deleting the cierre is the only way to reopen a closed day. Delete and
// reopen share a transaction; the partial unique index rejects the reopen if
// some other session is already open at the punto de venta.

func (s *cierreService) RevertirCierre(ctx context.Context, cierreID uuid.UUID) (*dto.SesionCajaResponse, error) {
	var sesion *model.SesionCaja
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		cierre, err := s.repo.FindCierreByID(ctx, cierreID)
		if err != nil {
			if repository.IsNotFound(err) {
				return noEncontradof("cierre %s", cierreID)
			}
			return err
		}

		if err := s.repo.DeleteCierreTx(tx, cierreID); err != nil {
			if repository.IsNotFound(err) {
				// A concurrent revert got there first.
				return noEncontradof("cierre %s", cierreID)
			}
			return err
		}

		sesion, err = s.repo.FindSesionByIDTx(tx, cierre.SesionCajaID)
		if err != nil {
			return err
		}
		sesion.Estado = model.SesionAbierta
		sesion.ClosedAt = nil
		return s.repo.UpdateSesionTx(tx, sesion)
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, conflictof("no se puede reabrir: ya hay otra caja abierta")
		}
		return nil, err
	}

	log.Info().
		Str("cierre_id", cierreID.String()).
		Str("sesion_id", sesion.ID.String()).
		Msg("cierre revertido, sesión reabierta")

	return sesionToResponse(sesion), nil
}

// ── ListarCierres ─────────────────────────────────────────────────────────────

func (s *cierreService) ListarCierres(ctx context.Context, page, limit int) (*dto.CierresResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	cierres, total, err := s.repo.ListCierres(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	results := make([]dto.CierreCajaResponse, 0, len(cierres))
	for i := range cierres {
		results = append(results, cierreToResponse(&cierres[i]))
	}
	return &dto.CierresResponse{Results: results, Total: total, Page: page, Limit: limit}, nil
}

func cierreToResponse(c *model.CierreCaja) dto.CierreCajaResponse {
	return dto.CierreCajaResponse{
		ID:                c.ID.String(),
		Fecha:             c.Fecha.Format("2006-01-02"),
		NumeroCierre:      c.NumeroCierre,
		EfectivoContado:   c.EfectivoContado,
		TarjetaContada:    c.TarjetaContada,
		EfectivoEsperado:  c.EfectivoEsperado,
		TarjetaEsperada:   c.TarjetaEsperada,
		DescuadreEfectivo: c.DescuadreEfectivo,
		DescuadreTarjeta:  c.DescuadreTarjeta,
		DescuadreTotal:    c.DescuadreTotal,
		MovimientosCount:  c.MovimientosCount,
		Observaciones:     c.Observaciones,
		CerradoPor:        c.CerradoPor.String(),
		ClosedAt:          c.ClosedAt.Format(time.RFC3339),
	}
}

package service

import (
	"context"
	"fmt"

	"alquicaja/internal/dto"
	"alquicaja/internal/model"

	"github.com/shopspring/decimal"
)

// TarifaLookup resolves the per-day rate of an item code. Satisfied by
// infra.TarifasClient in production.
type TarifaLookup interface {
	PrecioDia(ctx context.Context, item string) (decimal.Decimal, error)
}

type CambioService interface {
	// CambiarItem prices an equipment swap mid-rental and records the tariff
	// difference as a ledger movement. Returns nil when the rates are equal
	// and there is nothing to collect or refund.
	CambiarItem(ctx context.Context, req dto.CambioItemRequest) (*dto.MovimientoResponse, error)
}

type cambioService struct {
	tarifas TarifaLookup
	caja    CajaService
}

func NewCambioService(tarifas TarifaLookup, caja CajaService) CambioService {
	return &cambioService{tarifas: tarifas, caja: caja}
}

func (s *cambioService) CambiarItem(ctx context.Context, req dto.CambioItemRequest) (*dto.MovimientoResponse, error) {
	if req.Dias <= 0 {
		return nil, validacionf("los días restantes deben ser mayores a 0")
	}
	if req.ItemEntregado == req.ItemRecibido {
		return nil, validacionf("el ítem entregado y el recibido son el mismo")
	}

	precioEntregado, err := s.tarifas.PrecioDia(ctx, req.ItemEntregado)
	if err != nil {
		return nil, validacionf("tarifa de %q no disponible: %v", req.ItemEntregado, err)
	}
	precioRecibido, err := s.tarifas.PrecioDia(ctx, req.ItemRecibido)
	if err != nil {
		return nil, validacionf("tarifa de %q no disponible: %v", req.ItemRecibido, err)
	}

	// Positive delta: the customer upgraded and pays the difference.
	// Negative delta: downgrade, the difference goes back as a devolución.
	delta := precioEntregado.Sub(precioRecibido).Mul(decimal.NewFromInt(int64(req.Dias)))
	if delta.IsZero() {
		return nil, nil
	}

	tipo := model.MovIngreso
	monto := delta
	if delta.IsNegative() {
		tipo = model.MovDevolucion
		monto = delta.Neg()
	}

	concepto := fmt.Sprintf("Cambio de ítem %s → %s (%d días)", req.ItemRecibido, req.ItemEntregado, req.Dias)
	return s.caja.RegistrarMovimiento(ctx, dto.MovimientoRequest{
		Tipo:          tipo,
		MetodoPago:    req.MetodoPago,
		Categoria:     "alquiler",
		Concepto:      concepto,
		Observaciones: req.Observaciones,
		Monto:         monto,
		ReferenciaID:  &req.AlquilerID,
	})
}

package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"alquicaja/internal/dto"
	"alquicaja/internal/model"
	"alquicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeCajaRepo is a full in-memory CajaRepository. DB() returns nil so the
// services run their transaction closures directly. The partial unique index
// on open sessions is simulated in CreateSesionTx and UpdateSesionTx.
type fakeCajaRepo struct {
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja
	cierres     map[uuid.UUID]*model.CierreCaja
}

func newFakeCajaRepo() *fakeCajaRepo {
	return &fakeCajaRepo{
		sesiones: make(map[uuid.UUID]*model.SesionCaja),
		cierres:  make(map[uuid.UUID]*model.CierreCaja),
	}
}

func (r *fakeCajaRepo) DB() *gorm.DB { return nil }

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// ── Sesiones ──────────────────────────────────────────────────────────────────

func (r *fakeCajaRepo) CreateSesionTx(_ *gorm.DB, s *model.SesionCaja) error {
	for _, other := range r.sesiones {
		if other.PuntoDeVenta == s.PuntoDeVenta && other.Estado == model.SesionAbierta {
			return gorm.ErrDuplicatedKey
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *fakeCajaRepo) FindSesionAbierta(_ context.Context, pdv int) (*model.SesionCaja, error) {
	return r.FindSesionAbiertaTx(nil, pdv)
}

func (r *fakeCajaRepo) FindSesionAbiertaTx(_ *gorm.DB, pdv int) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.PuntoDeVenta == pdv && s.Estado == model.SesionAbierta {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) FindSesionPorFecha(_ context.Context, fecha time.Time) (*model.SesionCaja, error) {
	var latest *model.SesionCaja
	for _, s := range r.sesiones {
		if sameDay(s.Fecha, fecha) && (latest == nil || s.OpenedAt.After(latest.OpenedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeCajaRepo) FindSesionPorFechaTx(_ *gorm.DB, fecha time.Time) (*model.SesionCaja, error) {
	return r.FindSesionPorFecha(context.Background(), fecha)
}

func (r *fakeCajaRepo) FindSesionAbiertaPorFechaTx(_ *gorm.DB, fecha time.Time) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if sameDay(s.Fecha, fecha) && s.Estado == model.SesionAbierta {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) FindSesionByIDTx(_ *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeCajaRepo) UpdateSesionTx(_ *gorm.DB, s *model.SesionCaja) error {
	if s.Estado == model.SesionAbierta {
		for id, other := range r.sesiones {
			if id != s.ID && other.PuntoDeVenta == s.PuntoDeVenta && other.Estado == model.SesionAbierta {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

// ── Movimientos ───────────────────────────────────────────────────────────────

func (r *fakeCajaRepo) CreateMovimientoTx(_ *gorm.DB, m *model.MovimientoCaja) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *fakeCajaRepo) FindMovimientoByID(_ context.Context, id uuid.UUID) (*model.MovimientoCaja, error) {
	for i := range r.movimientos {
		if r.movimientos[i].ID == id {
			cp := r.movimientos[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) UpdateMetodoPago(_ context.Context, id uuid.UUID, metodo string) error {
	for i := range r.movimientos {
		if r.movimientos[i].ID == id {
			r.movimientos[i].MetodoPago = metodo
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) ListMovimientos(_ context.Context, fecha time.Time) ([]model.MovimientoCaja, error) {
	var out []model.MovimientoCaja
	for _, m := range r.movimientos {
		if sameDay(m.Fecha, fecha) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeCajaRepo) CountMovimientos(_ context.Context, fecha time.Time) (int64, error) {
	return r.CountMovimientosTx(nil, fecha)
}

func (r *fakeCajaRepo) CountMovimientosTx(_ *gorm.DB, fecha time.Time) (int64, error) {
	movs, _ := r.ListMovimientos(context.Background(), fecha)
	return int64(len(movs)), nil
}

func (r *fakeCajaRepo) NextNumeroOperacionTx(tx *gorm.DB, fecha time.Time) (int64, error) {
	count, _ := r.CountMovimientosTx(tx, fecha)
	return count + 1, nil
}

func (r *fakeCajaRepo) SumMovimientos(_ context.Context, fecha time.Time) (repository.SumasPorMetodo, error) {
	sums := repository.SumasPorMetodo{}
	for _, m := range r.movimientos {
		if !sameDay(m.Fecha, fecha) {
			continue
		}
		if sums[m.Tipo] == nil {
			sums[m.Tipo] = map[string]decimal.Decimal{}
		}
		sums[m.Tipo][m.MetodoPago] = sums[m.Tipo][m.MetodoPago].Add(m.Monto)
	}
	return sums, nil
}

func (r *fakeCajaRepo) SumMovimientosTx(_ *gorm.DB, fecha time.Time) (repository.SumasPorMetodo, error) {
	return r.SumMovimientos(context.Background(), fecha)
}

// ── Cierres ───────────────────────────────────────────────────────────────────

func (r *fakeCajaRepo) CreateCierreTx(_ *gorm.DB, c *model.CierreCaja) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.cierres[c.ID] = &cp
	return nil
}

func (r *fakeCajaRepo) FindCierreByID(_ context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	c, ok := r.cierres[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCajaRepo) DeleteCierreTx(_ *gorm.DB, id uuid.UUID) error {
	if _, ok := r.cierres[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.cierres, id)
	return nil
}

func (r *fakeCajaRepo) ListCierres(_ context.Context, page, limit int) ([]model.CierreCaja, int64, error) {
	all := make([]model.CierreCaja, 0, len(r.cierres))
	for _, c := range r.cierres {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ClosedAt.After(all[j].ClosedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// ── Búsqueda ──────────────────────────────────────────────────────────────────

func (r *fakeCajaRepo) SearchMovimientos(_ context.Context, f dto.BusquedaFilter) ([]model.MovimientoCaja, int64, error) {
	var matches []model.MovimientoCaja
	texto := strings.ToLower(f.Texto)
	for _, m := range r.movimientos {
		if m.Fecha.Before(f.Desde) || m.Fecha.After(f.Hasta) {
			continue
		}
		if f.MetodoPago != "" && m.MetodoPago != f.MetodoPago {
			continue
		}
		if texto != "" &&
			!strings.Contains(strings.ToLower(m.Concepto), texto) &&
			!strings.Contains(strings.ToLower(m.Observaciones), texto) &&
			!strings.Contains(strings.ToLower(m.NumeroOperacion), texto) {
			continue
		}
		matches = append(matches, m)
	}

	total := int64(len(matches))
	if f.Skip >= len(matches) {
		return nil, total, nil
	}
	end := f.Skip + f.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[f.Skip:end], total, nil
}

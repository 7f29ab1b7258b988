package repository

import (
	"context"
	"errors"
	"time"

	"alquicaja/internal/dto"
	"alquicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func forUpdate() clause.Locking { return clause.Locking{Strength: "UPDATE"} }

// SumasPorMetodo groups ledger sums by (tipo, metodo_pago). Amounts are stored
// positive, so the aggregator derives direction from Tipo when combining.
type SumasPorMetodo map[string]map[string]decimal.Decimal

// CajaRepository is the storage boundary for sessions, the movement ledger and
// closures. Tx variants exist for the operations that must share a transaction
// (CAS open, atomic close, atomic revert); they accept a nil tx in unit tests.
type CajaRepository interface {
	// DB exposes the underlying handle so services can open transactions.
	// Returns nil for in-memory test doubles.
	DB() *gorm.DB

	CreateSesionTx(tx *gorm.DB, s *model.SesionCaja) error
	FindSesionAbierta(ctx context.Context, puntoDeVenta int) (*model.SesionCaja, error)
	FindSesionAbiertaTx(tx *gorm.DB, puntoDeVenta int) (*model.SesionCaja, error)
	FindSesionPorFecha(ctx context.Context, fecha time.Time) (*model.SesionCaja, error)
	FindSesionPorFechaTx(tx *gorm.DB, fecha time.Time) (*model.SesionCaja, error)
	FindSesionAbiertaPorFechaTx(tx *gorm.DB, fecha time.Time) (*model.SesionCaja, error)
	FindSesionByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error

	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	FindMovimientoByID(ctx context.Context, id uuid.UUID) (*model.MovimientoCaja, error)
	UpdateMetodoPago(ctx context.Context, id uuid.UUID, metodo string) error
	ListMovimientos(ctx context.Context, fecha time.Time) ([]model.MovimientoCaja, error)
	CountMovimientos(ctx context.Context, fecha time.Time) (int64, error)
	CountMovimientosTx(tx *gorm.DB, fecha time.Time) (int64, error)
	NextNumeroOperacionTx(tx *gorm.DB, fecha time.Time) (int64, error)
	SumMovimientos(ctx context.Context, fecha time.Time) (SumasPorMetodo, error)
	SumMovimientosTx(tx *gorm.DB, fecha time.Time) (SumasPorMetodo, error)

	CreateCierreTx(tx *gorm.DB, c *model.CierreCaja) error
	FindCierreByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error)
	DeleteCierreTx(tx *gorm.DB, id uuid.UUID) error
	ListCierres(ctx context.Context, page, limit int) ([]model.CierreCaja, int64, error)

	SearchMovimientos(ctx context.Context, f dto.BusquedaFilter) ([]model.MovimientoCaja, int64, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

// ── Sesiones ──────────────────────────────────────────────────────────────────

func (r *cajaRepo) CreateSesionTx(tx *gorm.DB, s *model.SesionCaja) error {
	return tx.Create(s).Error
}

func (r *cajaRepo) FindSesionAbierta(ctx context.Context, puntoDeVenta int) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("punto_de_venta = ? AND estado = ?", puntoDeVenta, model.SesionAbierta).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSesionAbiertaTx locks the open-session row so a movement insert
// serializes against a concurrent close of the same session.
func (r *cajaRepo) FindSesionAbiertaTx(tx *gorm.DB, puntoDeVenta int) (*model.SesionCaja, error) {
	var s model.SesionCaja
	q := tx.Where("punto_de_venta = ? AND estado = ?", puntoDeVenta, model.SesionAbierta)
	if tx.Dialector != nil {
		q = q.Clauses(forUpdate())
	}
	if err := q.First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionPorFecha(ctx context.Context, fecha time.Time) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("fecha = ?", fecha.Format("2006-01-02")).
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionPorFechaTx(tx *gorm.DB, fecha time.Time) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.Where("fecha = ?", fecha.Format("2006-01-02")).
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSesionAbiertaPorFechaTx locks the row (SELECT ... FOR UPDATE) so a close
// serializes against concurrent movement writes for the same session.
func (r *cajaRepo) FindSesionAbiertaPorFechaTx(tx *gorm.DB, fecha time.Time) (*model.SesionCaja, error) {
	var s model.SesionCaja
	q := tx.Where("fecha = ? AND estado = ?", fecha.Format("2006-01-02"), model.SesionAbierta)
	if tx.Dialector != nil {
		q = q.Clauses(forUpdate())
	}
	if err := q.First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	q := tx.Where("id = ?", id)
	if tx.Dialector != nil {
		q = q.Clauses(forUpdate())
	}
	if err := q.First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cajaRepo) UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error {
	return tx.Save(s).Error
}

// ── Movimientos ───────────────────────────────────────────────────────────────

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) FindMovimientoByID(ctx context.Context, id uuid.UUID) (*model.MovimientoCaja, error) {
	var m model.MovimientoCaja
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMetodoPago is the single mutable exception on the ledger: a one-column
// update that never touches monto or tipo.
func (r *cajaRepo) UpdateMetodoPago(ctx context.Context, id uuid.UUID, metodo string) error {
	res := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Where("id = ?", id).
		Update("metodo_pago", metodo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, fecha time.Time) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Where("fecha = ?", fecha.Format("2006-01-02")).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) CountMovimientos(ctx context.Context, fecha time.Time) (int64, error) {
	return countMovimientos(r.db.WithContext(ctx), fecha)
}

func (r *cajaRepo) CountMovimientosTx(tx *gorm.DB, fecha time.Time) (int64, error) {
	return countMovimientos(tx, fecha)
}

func countMovimientos(db *gorm.DB, fecha time.Time) (int64, error) {
	var count int64
	err := db.Model(&model.MovimientoCaja{}).
		Where("fecha = ?", fecha.Format("2006-01-02")).
		Count(&count).Error
	return count, err
}

// NextNumeroOperacionTx returns the next per-date sequence number. It must run
// inside the same transaction as the movement insert so two concurrent inserts
// cannot claim the same number (the unique index on numero_operacion backstops
// the race by aborting one of the two transactions).
func (r *cajaRepo) NextNumeroOperacionTx(tx *gorm.DB, fecha time.Time) (int64, error) {
	var count int64
	err := tx.Model(&model.MovimientoCaja{}).
		Where("fecha = ?", fecha.Format("2006-01-02")).
		Count(&count).Error
	return count + 1, err
}

type sumaRow struct {
	Tipo       string
	MetodoPago string
	Total      decimal.Decimal
}

func (r *cajaRepo) SumMovimientos(ctx context.Context, fecha time.Time) (SumasPorMetodo, error) {
	return sumMovimientos(r.db.WithContext(ctx), fecha)
}

func (r *cajaRepo) SumMovimientosTx(tx *gorm.DB, fecha time.Time) (SumasPorMetodo, error) {
	return sumMovimientos(tx, fecha)
}

func sumMovimientos(db *gorm.DB, fecha time.Time) (SumasPorMetodo, error) {
	var rows []sumaRow
	err := db.Model(&model.MovimientoCaja{}).
		Select("tipo, metodo_pago, COALESCE(SUM(monto), 0) AS total").
		Where("fecha = ?", fecha.Format("2006-01-02")).
		Group("tipo, metodo_pago").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sums := SumasPorMetodo{}
	for _, row := range rows {
		if sums[row.Tipo] == nil {
			sums[row.Tipo] = map[string]decimal.Decimal{}
		}
		sums[row.Tipo][row.MetodoPago] = row.Total
	}
	return sums, nil
}

// ── Cierres ───────────────────────────────────────────────────────────────────

func (r *cajaRepo) CreateCierreTx(tx *gorm.DB, c *model.CierreCaja) error {
	return tx.Create(c).Error
}

func (r *cajaRepo) FindCierreByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cajaRepo) DeleteCierreTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.CierreCaja{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cajaRepo) ListCierres(ctx context.Context, page, limit int) ([]model.CierreCaja, int64, error) {
	var cierres []model.CierreCaja
	var total int64

	q := r.db.WithContext(ctx).Model(&model.CierreCaja{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("closed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&cierres).Error
	return cierres, total, err
}

// ── Búsqueda histórica ────────────────────────────────────────────────────────

// SearchMovimientos applies the history filters and returns one page plus the
// total match count. Total is computed before pagination, so every page of the
// same filter reports the same figure.
func (r *cajaRepo) SearchMovimientos(ctx context.Context, f dto.BusquedaFilter) ([]model.MovimientoCaja, int64, error) {
	var movs []model.MovimientoCaja
	var total int64

	q := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Where("fecha >= ? AND fecha <= ?", f.Desde.Format("2006-01-02"), f.Hasta.Format("2006-01-02"))

	if f.Texto != "" {
		pattern := "%" + f.Texto + "%"
		q = q.Where("concepto ILIKE ? OR observaciones ILIKE ? OR numero_operacion ILIKE ?",
			pattern, pattern, pattern)
	}
	if f.MetodoPago != "" {
		q = q.Where("metodo_pago = ?", f.MetodoPago)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at ASC").Offset(f.Skip).Limit(f.Limit).Find(&movs).Error
	return movs, total, err
}

// IsNotFound reports whether err is the storage layer's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation (requires
// TranslateError in the gorm config, see infra.NewDatabase).
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Movement types. Monto is stored strictly positive; the effect on totals is
// derived from Tipo at aggregation time and never stored as a signed number.
const (
	MovIngreso    = "ingreso"
	MovEgreso     = "egreso"
	MovDevolucion = "devolucion"
)

// Payment methods.
const (
	MetodoEfectivo = "efectivo"
	MetodoTarjeta  = "tarjeta"
)

// MovimientoCaja is an atomic event in the cash ledger. Rows are immutable with
// one exception: MetodoPago may be corrected post-hoc (single-field update that
// never touches Monto or Tipo). Aggregates are recomputed on read, so a method
// correction is visible on the next summary without any cache surgery.
type MovimientoCaja struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Fecha           time.Time       `gorm:"type:date;not null;index"`
	Tipo            string          `gorm:"type:varchar(20);not null"`
	MetodoPago      string          `gorm:"type:varchar(20);not null"`
	Categoria       string          `gorm:"type:varchar(40);not null"`
	Concepto        string          `gorm:"not null"`
	Observaciones   string
	NumeroOperacion string          `gorm:"type:varchar(30);not null;uniqueIndex"`
	Monto           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ReferenciaID links to the originating external transaction (e.g. an alquiler)
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }

// EsSalida reports whether the movement reduces expected totals.
func (m *MovimientoCaja) EsSalida() bool {
	return m.Tipo == MovEgreso || m.Tipo == MovDevolucion
}

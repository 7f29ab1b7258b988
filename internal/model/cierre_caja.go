package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CierreCaja is the immutable end-of-day reconciliation snapshot (arqueo).
// It exists only while its SesionCaja is closed; deleting it is the sole
// mechanism to reopen the day. Descuadres follow the counted-minus-expected
// convention: positive is a surplus, negative a shortfall. No tolerance is
// applied, any nonzero descuadre is surfaced as-is.
type CierreCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID `gorm:"type:uuid;not null;index"`
	Fecha        time.Time `gorm:"type:date;not null;index"`
	// NumeroCierre is sequential per date: a close-revert-close day yields 1, then 2.
	NumeroCierre int `gorm:"not null"`

	EfectivoContado  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TarjetaContada   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EfectivoEsperado decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TarjetaEsperada  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	DescuadreEfectivo decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DescuadreTarjeta  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DescuadreTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	MovimientosCount int `gorm:"not null"`

	Observaciones *string
	CerradoPor    uuid.UUID `gorm:"type:uuid;not null"`
	ClosedAt      time.Time
}

func (CierreCaja) TableName() string { return "cierres_caja" }

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session states. A punto de venta has at most one open session at a time;
// the invariant lives in the storage layer as a partial unique index
// (see infra.applySchemaPatches), never as in-process state.
const (
	SesionAbierta = "abierta"
	SesionCerrada = "cerrada"
)

// SesionCaja represents the open/closed lifecycle of the till for one business date.
// It flips to "cerrada" only through a CierreCaja, and back to "abierta" only by
// deleting that CierreCaja.
type SesionCaja struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PuntoDeVenta  int             `gorm:"not null;index"`
	Fecha         time.Time       `gorm:"type:date;not null;index"`
	SaldoInicial  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AbiertaPor    uuid.UUID       `gorm:"type:uuid;not null"`
	Estado        string          `gorm:"type:varchar(20);not null;default:'abierta'"`
	Observaciones *string
	// CierresRealizados counts every close of this session, including reverted
	// ones, so closure numbering keeps incrementing across a close-revert-close
	// cycle.
	CierresRealizados int `gorm:"not null;default:0"`
	OpenedAt          time.Time
	ClosedAt          *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	SaldoInicial  decimal.Decimal `json:"saldo_inicial"  validate:"min=0"`
	Observaciones *string         `json:"observaciones"`
}

type MovimientoRequest struct {
	Tipo          string          `json:"tipo"           validate:"required,oneof=ingreso egreso devolucion"`
	MetodoPago    string          `json:"metodo_pago"    validate:"required,oneof=efectivo tarjeta"`
	Categoria     string          `json:"categoria"      validate:"required"`
	Concepto      string          `json:"concepto"       validate:"required,min=1"`
	Observaciones string          `json:"observaciones"`
	Monto         decimal.Decimal `json:"monto"          validate:"required,gt=0"`
	// ReferenciaID links the movement to an originating alquiler or external operation
	ReferenciaID *string `json:"referencia_id" validate:"omitempty,uuid"`
}

type CambiarMetodoPagoRequest struct {
	MetodoPago string `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta"`
}

type CerrarCajaRequest struct {
	Fecha           string          `json:"fecha"            validate:"omitempty,datetime=2006-01-02"`
	EfectivoContado decimal.Decimal `json:"efectivo_contado" validate:"min=0"`
	TarjetaContada  decimal.Decimal `json:"tarjeta_contada"  validate:"min=0"`
	Observaciones   *string         `json:"observaciones"`
}

// CambioItemRequest drives the item-swap delta-pricing flow: the tariff
// difference between the returned and the delivered item is recorded as an
// ordinary ledger movement.
type CambioItemRequest struct {
	AlquilerID     string `json:"alquiler_id"     validate:"required,uuid"`
	ItemEntregado  string `json:"item_entregado"  validate:"required"`
	ItemRecibido   string `json:"item_recibido"   validate:"required"`
	Dias           int    `json:"dias"            validate:"required,min=1"`
	MetodoPago     string `json:"metodo_pago"     validate:"required,oneof=efectivo tarjeta"`
	Observaciones  string `json:"observaciones"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SesionCajaResponse struct {
	ID            string          `json:"id"`
	PuntoDeVenta  int             `json:"punto_de_venta"`
	Fecha         string          `json:"fecha"`
	SaldoInicial  decimal.Decimal `json:"saldo_inicial"`
	AbiertaPor    string          `json:"abierta_por"`
	Estado        string          `json:"estado"`
	Observaciones *string         `json:"observaciones"`
	OpenedAt      string          `json:"opened_at"`
	ClosedAt      *string         `json:"closed_at"`
}

type MovimientoResponse struct {
	ID              string          `json:"id"`
	Fecha           string          `json:"fecha"`
	Tipo            string          `json:"tipo"`
	MetodoPago      string          `json:"metodo_pago"`
	Categoria       string          `json:"categoria"`
	Concepto        string          `json:"concepto"`
	Observaciones   string          `json:"observaciones,omitempty"`
	NumeroOperacion string          `json:"numero_operacion"`
	Monto           decimal.Decimal `json:"monto"`
	ReferenciaID    *string         `json:"referencia_id,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

// ResumenCajaResponse is derived from the full movement set on every read;
// it is never persisted.
type ResumenCajaResponse struct {
	Fecha            string          `json:"fecha"`
	SaldoInicial     decimal.Decimal `json:"saldo_inicial"`
	IngresosBrutos   decimal.Decimal `json:"ingresos_brutos"`
	TotalSalidas     decimal.Decimal `json:"total_salidas"`
	BalanceNetoDia   decimal.Decimal `json:"balance_neto_dia"`
	EfectivoEsperado decimal.Decimal `json:"efectivo_esperado"`
	TarjetaEsperada  decimal.Decimal `json:"tarjeta_esperada"`
	MovimientosCount int             `json:"movimientos_count"`
}

// CierresResponse is one page of closure history, newest first.
type CierresResponse struct {
	Results []CierreCajaResponse `json:"results"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
}

type CierreCajaResponse struct {
	ID                string          `json:"id"`
	Fecha             string          `json:"fecha"`
	NumeroCierre      int             `json:"numero_cierre"`
	EfectivoContado   decimal.Decimal `json:"efectivo_contado"`
	TarjetaContada    decimal.Decimal `json:"tarjeta_contada"`
	EfectivoEsperado  decimal.Decimal `json:"efectivo_esperado"`
	TarjetaEsperada   decimal.Decimal `json:"tarjeta_esperada"`
	DescuadreEfectivo decimal.Decimal `json:"descuadre_efectivo"`
	DescuadreTarjeta  decimal.Decimal `json:"descuadre_tarjeta"`
	DescuadreTotal    decimal.Decimal `json:"descuadre_total"`
	MovimientosCount  int             `json:"movimientos_count"`
	Observaciones     *string         `json:"observaciones"`
	CerradoPor        string          `json:"cerrado_por"`
	ClosedAt          string          `json:"closed_at"`
}

package infra

// pdf.go — Arqueo (cash count) report generation using go-pdf/fpdf.
// One A4 page per cierre: counted vs expected per payment method, the
// resulting descuadres, and the full movement listing for the date.
// The output file is saved to storagePath/arqueo_{fecha}_{numero}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"alquicaja/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateArqueoPDF renders the reconciliation report for a completed cierre.
// storagePath is created if needed. Returns the path to the generated file.
func GenerateArqueoPDF(cierre *model.CierreCaja, movimientos []model.MovimientoCaja, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("arqueo_%s_%d.pdf", cierre.Fecha.Format("2006-01-02"), cierre.NumeroCierre)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Arqueo de Caja", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6,
		fmt.Sprintf("Fecha %s — Cierre N° %d", cierre.Fecha.Format("02/01/2006"), cierre.NumeroCierre),
		"", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Counted vs expected ───────────────────────────────────────────────────
	col := contentW / 4

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col, 6, "", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col, 6, "Contado", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col, 6, "Esperado", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col, 6, "Descuadre", "B", 1, "R", false, 0, "")

	row := func(label string, contado, esperado, descuadre decimal.Decimal) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(col, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col, 6, "$"+contado.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(col, 6, "$"+esperado.StringFixed(2), "", 0, "R", false, 0, "")
		if !descuadre.IsZero() {
			pdf.SetFont("Helvetica", "B", 9)
		}
		pdf.CellFormat(col, 6, "$"+descuadre.StringFixed(2), "", 1, "R", false, 0, "")
	}
	row("Efectivo", cierre.EfectivoContado, cierre.EfectivoEsperado, cierre.DescuadreEfectivo)
	row("Tarjeta", cierre.TarjetaContada, cierre.TarjetaEsperada, cierre.DescuadreTarjeta)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(col*3, 7, "Descuadre total:", "T", 0, "L", false, 0, "")
	pdf.CellFormat(col, 7, "$"+cierre.DescuadreTotal.StringFixed(2), "T", 1, "R", false, 0, "")

	if cierre.Observaciones != nil && *cierre.Observaciones != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Obs: "+*cierre.Observaciones, "", "L", false)
	}
	pdf.Ln(5)

	// ── Movement listing ─────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Movimientos del día (%d)", cierre.MovimientosCount), "", 1, "L", false, 0, "")

	c1 := contentW * 0.18 // numero operacion
	c2 := contentW * 0.13 // tipo
	c3 := contentW * 0.12 // metodo
	c4 := contentW * 0.42 // concepto
	c5 := contentW * 0.15 // monto

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(c1, 5, "Operación", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c2, 5, "Tipo", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c3, 5, "Método", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c4, 5, "Concepto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c5, 5, "Monto", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for i := range movimientos {
		m := &movimientos[i]
		concepto := m.Concepto
		if len(concepto) > 48 {
			concepto = concepto[:47] + "…"
		}
		monto := "$" + m.Monto.StringFixed(2)
		if m.EsSalida() {
			monto = "-" + monto
		}
		pdf.CellFormat(c1, 5, m.NumeroOperacion, "", 0, "L", false, 0, "")
		pdf.CellFormat(c2, 5, m.Tipo, "", 0, "L", false, 0, "")
		pdf.CellFormat(c3, 5, m.MetodoPago, "", 0, "L", false, 0, "")
		pdf.CellFormat(c4, 5, concepto, "", 0, "L", false, 0, "")
		pdf.CellFormat(c5, 5, monto, "", 1, "R", false, 0, "")
	}

	// ── Footer ────────────────────────────────────────────────────────────────
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4,
		fmt.Sprintf("Generado %s — cierre %s", cierre.ClosedAt.Format("02/01/2006 15:04"), cierre.ID),
		"", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

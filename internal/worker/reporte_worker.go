package worker

// reporte_worker.go
// Processes arqueo-report jobs from QueueReportes: renders the closure PDF
// and mails it to the supervisor inbox.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alquicaja/internal/infra"
	"alquicaja/internal/model"
	"alquicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReporteJobPayload is the job envelope sent to QueueReportes.
type ReporteJobPayload struct {
	CierreID string `json:"cierre_id"`
}

// CierreReader is the slice of the repository the report worker reads from.
type CierreReader interface {
	FindCierreByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error)
	ListMovimientos(ctx context.Context, fecha time.Time) ([]model.MovimientoCaja, error)
}

// ReporteWorker generates and emails the arqueo PDF for a cierre.
type ReporteWorker struct {
	repo            CierreReader
	mailer          *infra.Mailer
	pdfStoragePath  string
	supervisorEmail string
}

func NewReporteWorker(repo CierreReader, mailer *infra.Mailer, pdfStoragePath, supervisorEmail string) *ReporteWorker {
	return &ReporteWorker{
		repo:            repo,
		mailer:          mailer,
		pdfStoragePath:  pdfStoragePath,
		supervisorEmail: supervisorEmail,
	}
}

// Process renders the PDF for the cierre and sends it. The cierre may have
// been reverted between enqueue and processing; a missing row is a normal
// outcome, not an error.
func (w *ReporteWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReporteJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("reporte_worker: invalid payload")
		return
	}

	cierreID, err := uuid.Parse(payload.CierreID)
	if err != nil {
		log.Error().Str("cierre_id", payload.CierreID).Msg("reporte_worker: invalid cierre_id")
		return
	}

	cierre, err := w.repo.FindCierreByID(ctx, cierreID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Info().Str("cierre_id", payload.CierreID).Msg("reporte_worker: cierre reverted before report, skipping")
			return
		}
		log.Error().Err(err).Str("cierre_id", payload.CierreID).Msg("reporte_worker: failed to load cierre")
		return
	}

	movimientos, err := w.repo.ListMovimientos(ctx, cierre.Fecha)
	if err != nil {
		log.Error().Err(err).Str("cierre_id", payload.CierreID).Msg("reporte_worker: failed to load movimientos")
		return
	}

	pdfPath, err := infra.GenerateArqueoPDF(cierre, movimientos, w.pdfStoragePath)
	if err != nil {
		log.Error().Err(err).Str("cierre_id", payload.CierreID).Msg("reporte_worker: PDF generation failed")
		return
	}
	log.Info().Str("pdf", pdfPath).Str("cierre_id", payload.CierreID).Msg("reporte_worker: PDF generated")

	if w.supervisorEmail == "" {
		return
	}

	subject := fmt.Sprintf("Arqueo de caja %s — cierre N° %d", cierre.Fecha.Format("02/01/2006"), cierre.NumeroCierre)
	body := fmt.Sprintf(
		"Cierre de caja del %s.\nDescuadre efectivo: $%s\nDescuadre tarjeta: $%s\nDescuadre total: $%s\n",
		cierre.Fecha.Format("02/01/2006"),
		cierre.DescuadreEfectivo.StringFixed(2),
		cierre.DescuadreTarjeta.StringFixed(2),
		cierre.DescuadreTotal.StringFixed(2),
	)
	if err := w.mailer.SendReporte(w.supervisorEmail, subject, body, pdfPath); err != nil {
		log.Error().Err(err).Str("to", w.supervisorEmail).Msg("reporte_worker: failed to send report")
		return
	}
	log.Info().Str("to", w.supervisorEmail).Str("cierre_id", payload.CierreID).Msg("reporte_worker: report sent")
}

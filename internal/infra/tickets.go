package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TicketPayload is sent to the printing sidecar, which drives the thermal
// printer at the mostrador.
type TicketPayload struct {
	NumeroOperacion string `json:"numero_operacion"`
	Tipo            string `json:"tipo"`
	MetodoPago      string `json:"metodo_pago"`
	Monto           string `json:"monto"`
	Concepto        string `json:"concepto"`
	Fecha           string `json:"fecha"`
}

// TicketResponse is returned by the sidecar after the print attempt.
type TicketResponse struct {
	Estado  string `json:"estado"` // "impreso" | "error"
	Detalle string `json:"detalle,omitempty"`
}

// TicketsClient delegates receipt printing to the sidecar over HTTP.
// Keeping printer driver quirks out of the backend means a jammed printer can
// never stall a ledger write.
type TicketsClient struct {
	sidecarURL string
	httpClient *http.Client
}

func NewTicketsClient(sidecarURL string) *TicketsClient {
	return &TicketsClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Imprimir sends a print job to the sidecar.
func (c *TicketsClient) Imprimir(ctx context.Context, payload TicketPayload) (*TicketResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tickets: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/imprimir", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tickets: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tickets: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tickets: sidecar returned %d", resp.StatusCode)
	}

	var result TicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tickets: decode response: %w", err)
	}
	return &result, nil
}

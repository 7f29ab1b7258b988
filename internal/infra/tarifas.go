package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Tarifa is the daily rental rate for a single item code, as published by the
// tariff service.
type Tarifa struct {
	Item      string          `json:"item"`
	PrecioDia decimal.Decimal `json:"precio_dia"`
}

// TarifasClient queries the tariff service for rental rates. The item-swap
// flow uses it to price the difference between the returned and the delivered
// equipment.
type TarifasClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTarifasClient(baseURL string) *TarifasClient {
	return &TarifasClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PrecioDia returns the per-day rate for an item code.
func (c *TarifasClient) PrecioDia(ctx context.Context, item string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/tarifas?item=%s", c.baseURL, url.QueryEscape(item))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tarifas: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tarifas: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("tarifas: item %q sin tarifa", item)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("tarifas: service returned %d", resp.StatusCode)
	}

	var t Tarifa
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return decimal.Zero, fmt.Errorf("tarifas: decode response: %w", err)
	}
	return t.PrecioDia, nil
}

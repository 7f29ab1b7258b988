package dto

import "time"

// BusquedaFilter carries the validated query parameters of the history search.
// Pagination is offset-based; Total in the response always counts every
// matching row regardless of the page requested.
type BusquedaFilter struct {
	Desde      time.Time
	Hasta      time.Time
	Texto      string
	MetodoPago string
	Skip       int
	Limit      int
}

type BusquedaResponse struct {
	Results []MovimientoResponse `json:"results"`
	Total   int64                `json:"total"`
	Skip    int                  `json:"skip"`
	Limit   int                  `json:"limit"`
}

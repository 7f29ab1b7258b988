// Package apierror defines the error envelopes every 4xx/5xx response uses.
// Handlers translate domain errors into these shapes so clients see a specific
// reason without internal detail (SQL text, stack traces) leaking through.
package apierror

// APIError is the single-message envelope: {"detail": "..."}.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries per-field messages for 422 responses, keyed by the
// JSON field name the client sent.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

package service

// errors.go — domain error categories.
// Every rejected operation wraps one of these sentinels with a specific,
// user-readable reason; handlers map the category to an HTTP status with
// errors.Is. Nothing in the core fails silently or with a generic message.

import (
	"errors"
	"fmt"
)

var (
	// ErrValidacion: malformed input (non-positive amount, empty concept,
	// unknown category or payment method). Rejected before any write.
	ErrValidacion = errors.New("error de validación")
	// ErrPrecondicion: operation attempted in the wrong state (no open session,
	// day already closed).
	ErrPrecondicion = errors.New("precondición no cumplida")
	// ErrConflicto: a competing state already exists (session already open).
	ErrConflicto = errors.New("conflicto de estado")
	// ErrNoEncontrado: the referenced movement, session or closure does not exist.
	ErrNoEncontrado = errors.New("no encontrado")
)

func validacionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidacion}, args...)...)
}

func precondicionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrPrecondicion}, args...)...)
}

func conflictof(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflicto}, args...)...)
}

func noEncontradof(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNoEncontrado}, args...)...)
}

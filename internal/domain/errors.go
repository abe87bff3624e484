package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")

	// ErrConfigMissing no hay configuración fiscal activa para la bodega del documento.
	ErrConfigMissing = errors.New("sin configuración fiscal activa")
	// ErrRetryLimit se alcanzó el tope de reintentos del documento.
	ErrRetryLimit = errors.New("tope de reintentos alcanzado")
	// ErrLeaseHeld otro proceso tiene el lease de envío del documento.
	ErrLeaseHeld = errors.New("envío en curso por otro proceso")
)

// ValidationError un documento no puede convertirse en payload fiscal
// (sin mapeos, sin líneas elegibles, datos incompletos). No es reintentable
// hasta que cambien los datos.
type ValidationError struct {
	Doc    string // número del documento afectado
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Doc != "" {
		return fmt.Sprintf("documento %s: %s", e.Doc, e.Reason)
	}
	return e.Reason
}

// Clases de fallo de red contra la autoridad.
type NetworkErrorKind string

const (
	NetworkTimeout           NetworkErrorKind = "timeout"
	NetworkConnectionFailure NetworkErrorKind = "connection_failure"
	NetworkUnauthorized      NetworkErrorKind = "unauthorized"
	NetworkHTTPError         NetworkErrorKind = "http_error"
	NetworkMalformedResponse NetworkErrorKind = "malformed_response"
)

// NetworkError fallo de transporte o de protocolo al hablar con la autoridad.
// Reintentable salvo Unauthorized.
type NetworkError struct {
	Kind       NetworkErrorKind
	Op         string // ruta u operación ("/invoice", "/status", ...)
	StatusCode int    // 0 si no hubo respuesta HTTP
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("red (%s) en %s: HTTP %d: %v", e.Kind, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("red (%s) en %s: %v", e.Kind, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable indica si tiene sentido reintentar el mismo envío.
func (e *NetworkError) Retryable() bool {
	return e.Kind != NetworkUnauthorized
}

// AuthorityError la autoridad procesó la petición pero la rechazó
// (campo Error no vacío en la respuesta de /status).
type AuthorityError struct {
	Text      string // texto del campo Error
	Reference string // RequestId u otro identificador devuelto
}

func (e *AuthorityError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("autoridad: %s (ref %s)", e.Text, e.Reference)
	}
	return "autoridad: " + e.Text
}

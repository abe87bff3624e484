package entity

import "time"

// SubmissionLog registra un intento de envío a la autoridad: payload enviado,
// respuesta recibida y desenlace. Un documento acumula un log por intento.
type SubmissionLog struct {
	ID           string
	DocumentID   string
	DocNumber    string
	Status       string // pending → sent → fiscalized | failed
	RequestData  string // payload JSON enviado
	ResponseData string // respuesta cruda de la autoridad
	ErrorMessage string
	FiscalNumber string
	HTTPStatus   int
	DurationMs   int64
	SentAt       *time.Time
	FiscalizedAt *time.Time
	CreatedAt    time.Time
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxMapping asocia un impuesto del host con un impuesto del dispositivo fiscal.
// Único por (config, impuesto local).
type TaxMapping struct {
	ID           string
	ConfigID     string
	LocalTaxID   string // ID del impuesto en el host ("" = sin impuesto asignado)
	LocalTaxName string
	TaxCode      string // código que viaja en el payload (TaxCode de línea)
	TaxName      string // nombre canónico ("Standard rated 15%", ...)
	TaxRate      decimal.Decimal
	TaxType      string // tipo canónico normalizado
	Description  string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CurrencyMapping asocia una moneda del host con un código de moneda ZIMRA.
// Único por (config, moneda local).
type CurrencyMapping struct {
	ID                string
	ConfigID          string
	LocalCurrencyCode string // código de la moneda en el host (ej. "USD", "ZWG")
	ZimraCurrencyCode string // código aceptado por la autoridad
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

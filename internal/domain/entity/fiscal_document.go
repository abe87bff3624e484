package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de fiscalización ante ZIMRA (vía Fiscal Harmony).
const (
	FiscalStatusPending    = "pending"    // Aún no enviado a la autoridad
	FiscalStatusSent       = "sent"       // Enviado, respuesta pendiente
	FiscalStatusFiscalized = "fiscalized" // Aceptado; número fiscal asignado
	FiscalStatusFailed     = "failed"     // Rechazado o fallo de red/preparación
	FiscalStatusCancelled  = "cancelled"  // Documento cancelado tras fiscalizar
	FiscalStatusExempted   = "exempted"   // Fuera del alcance de fiscalización
)

// Tipos de documento que ingresa el host.
const (
	DocTypeInvoice  = "invoice"
	DocTypePOSOrder = "pos_order"
)

// Estados del ciclo de vida del documento en el host.
const (
	DocStateDraft  = "draft"
	DocStatePosted = "posted"
	DocStatePaid   = "paid"
	DocStateDone   = "done"
	DocStateCancel = "cancel"
)

// FiscalDocument representa una factura o venta POS del host junto con todo su
// rastro de fiscalización. Es el agregado central del sistema.
type FiscalDocument struct {
	ID                string
	DocType           string // invoice | pos_order
	DocNumber         string // número del documento en el host (ej. "INV/2025/0042")
	Reference         string
	ReversedDocNumber string // número del documento original cuando es una reversión
	WarehouseID       string
	State             string    // ciclo de vida en el host: draft, posted, paid, done, cancel
	DocDate           time.Time // fecha del documento en el host

	// Comprador
	PartnerName     string
	PartnerTIN      string
	PartnerVAT      string
	PartnerPhone    string
	PartnerEmail    string
	PartnerProvince string
	PartnerStreet   string
	PartnerHouseNo  string
	PartnerCity     string

	// Montos (impuestos incluidos en Total)
	CurrencyCode  string // moneda del host; se traduce con currency mappings
	AmountUntaxed decimal.Decimal
	AmountTax     decimal.Decimal
	AmountTotal   decimal.Decimal

	// Rastro fiscal
	FiscalStatus     string
	FiscalNumber     string // "{InvoiceNumber}/{FiscalDay}" asignado por la autoridad
	Response         string // última respuesta cruda de la autoridad (JSON)
	ErrorText        string
	SentAt           *time.Time
	FiscalizedAt     *time.Time
	RetryCount       int
	QrCodeURL        string
	VerificationCode string
	FiscalPdfRef     string // referencia de descarga del PDF en la autoridad
	FiscalPdfData    string // PDF descargado, en base64

	// Lease de envío: evita envíos concurrentes del mismo documento
	InFlight bool
	LeasedAt *time.Time

	Lines []DocumentLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRefund indica si el documento es una reversión (nota de crédito / devolución POS).
func (d *FiscalDocument) IsRefund() bool {
	return d.ReversedDocNumber != ""
}

// Finalized indica si el documento está en un estado del host que permite fiscalizar.
func (d *FiscalDocument) Finalized() bool {
	switch d.State {
	case DocStatePosted, DocStatePaid, DocStateDone:
		return true
	}
	return false
}

// Tipos de línea del host.
const (
	DisplayTypeProduct = "product"
	DisplayTypeSection = "section"
	DisplayTypeNote    = "note"
)

// DocumentLine una línea del documento tal como la reporta el host.
type DocumentLine struct {
	ID            string
	DocumentID    string
	Description   string
	DisplayType   string // product | section | note
	ProductCode   string // código HS si el host lo conoce; si no, se extrae de la descripción
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	PriceSubtotal decimal.Decimal // sin impuestos, con descuento de línea aplicado
	PriceTotal    decimal.Decimal // con impuestos
	LocalTaxID    string          // ID del impuesto en el host; clave de los tax mappings
	TaxName       string          // nombre del impuesto en el host (fallback de mapeo)
}

// IsProduct indica si la línea entra al payload fiscal (secciones y notas no).
func (l DocumentLine) IsProduct() bool {
	return l.DisplayType == "" || l.DisplayType == DisplayTypeProduct
}

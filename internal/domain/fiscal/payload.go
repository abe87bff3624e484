// Package fiscal construye los payloads que viajan a la API Fiscal Harmony.
// Es lógica de dominio pura: no hace I/O ni conoce el transporte.
package fiscal

// BuyerContact datos del comprador dentro del payload.
type BuyerContact struct {
	Name      string  `json:"Name"`
	Tin       *string `json:"Tin"`
	VatNumber *string `json:"VatNumber"`
	Address   Address `json:"Address"`
	Phone     string  `json:"Phone"`
	Email     string  `json:"Email"`
}

// Address dirección estructurada del comprador.
type Address struct {
	Province string `json:"Province"`
	Street   string `json:"Street"`
	HouseNo  string `json:"HouseNo"`
	City     string `json:"City"`
}

// LineItem una línea del payload. Los montos van como strings de punto fijo:
// UnitAmount y Quantity con 3 decimales, LineAmount y DiscountAmount con 2.
type LineItem struct {
	Description    string `json:"Description"`
	UnitAmount     string `json:"UnitAmount"`
	TaxCode        string `json:"TaxCode"`
	ProductCode    string `json:"ProductCode"`
	LineAmount     string `json:"LineAmount"`
	DiscountAmount string `json:"DiscountAmount"`
	Quantity       string `json:"Quantity"`
}

// InvoicePayload payload de factura (POST /invoice).
type InvoicePayload struct {
	InvoiceID      string       `json:"InvoiceId"`
	InvoiceNumber  string       `json:"InvoiceNumber"`
	Reference      string       `json:"Reference"`
	IsDiscounted   bool         `json:"IsDiscounted"`
	IsTaxInclusive bool         `json:"IsTaxInclusive"`
	BuyerContact   BuyerContact `json:"BuyerContact"`
	Date           string       `json:"Date"`
	LineItems      []LineItem   `json:"LineItems"`
	SubTotal       string       `json:"SubTotal"`
	TotalTax       string       `json:"TotalTax"`
	Total          string       `json:"Total"`
	CurrencyCode   string       `json:"CurrencyCode"`
	IsRetry        bool         `json:"IsRetry"`
}

// CreditNotePayload payload de nota de crédito (POST /creditnote).
// Los montos viajan siempre en magnitud absoluta.
type CreditNotePayload struct {
	CreditNoteID      string       `json:"CreditNoteId"`
	CreditNoteNumber  string       `json:"CreditNoteNumber"`
	OriginalInvoiceID string       `json:"OriginalInvoiceId"`
	Reference         string       `json:"Reference"`
	IsDiscounted      bool         `json:"IsDiscounted"`
	IsTaxInclusive    bool         `json:"IsTaxInclusive"`
	BuyerContact      BuyerContact `json:"BuyerContact"`
	Date              string       `json:"Date"`
	LineItems         []LineItem   `json:"LineItems"`
	SubTotal          string       `json:"SubTotal"`
	TotalTax          string       `json:"TotalTax"`
	Total             string       `json:"Total"`
	CurrencyCode      string       `json:"CurrencyCode"`
	IsRetry           bool         `json:"IsRetry"`
}

// DocumentKind polaridad del documento, decidida una sola vez al construir.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "invoice"
	KindCreditNote DocumentKind = "credit_note"
)

// Rutas de envío por tipo de documento.
const (
	EndpointInvoice    = "/invoice"
	EndpointCreditNote = "/creditnote"
)

// Result payload construido, etiquetado por tipo. Exactamente uno de Invoice
// o CreditNote es no-nil según Kind.
type Result struct {
	Kind       DocumentKind
	Invoice    *InvoicePayload
	CreditNote *CreditNotePayload
}

// Endpoint devuelve la ruta de la API a la que viaja el payload.
func (r *Result) Endpoint() string {
	if r.Kind == KindCreditNote {
		return EndpointCreditNote
	}
	return EndpointInvoice
}

// Body devuelve el payload concreto para serializar.
func (r *Result) Body() any {
	if r.Kind == KindCreditNote {
		return r.CreditNote
	}
	return r.Invoice
}

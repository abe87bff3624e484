package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngestLineRequest una línea del documento tal como la reporta el host.
type IngestLineRequest struct {
	Description   string          `json:"description" validate:"required"`
	DisplayType   string          `json:"display_type" validate:"omitempty,oneof=product section note"`
	ProductCode   string          `json:"product_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PriceSubtotal decimal.Decimal `json:"price_subtotal"`
	PriceTotal    decimal.Decimal `json:"price_total"`
	LocalTaxID    string          `json:"local_tax_id"`
	TaxName       string          `json:"tax_name"`
}

// IngestDocumentRequest entrada del ingest de documentos del host.
type IngestDocumentRequest struct {
	DocType           string              `json:"doc_type" validate:"required,oneof=invoice pos_order"`
	DocNumber         string              `json:"doc_number" validate:"required"`
	Reference         string              `json:"reference"`
	ReversedDocNumber string              `json:"reversed_doc_number"`
	WarehouseID       string              `json:"warehouse_id" validate:"required"`
	State             string              `json:"state" validate:"required,oneof=draft posted paid done cancel"`
	DocDate           time.Time           `json:"doc_date"`
	PartnerName       string              `json:"partner_name"`
	PartnerTIN        string              `json:"partner_tin"`
	PartnerVAT        string              `json:"partner_vat"`
	PartnerPhone      string              `json:"partner_phone"`
	PartnerEmail      string              `json:"partner_email"`
	PartnerProvince   string              `json:"partner_province"`
	PartnerStreet     string              `json:"partner_street"`
	PartnerHouseNo    string              `json:"partner_house_no"`
	PartnerCity       string              `json:"partner_city"`
	CurrencyCode      string              `json:"currency_code"`
	AmountUntaxed     decimal.Decimal     `json:"amount_untaxed"`
	AmountTax         decimal.Decimal     `json:"amount_tax"`
	AmountTotal       decimal.Decimal     `json:"amount_total"`
	Lines             []IngestLineRequest `json:"lines" validate:"required,min=1"`
}

// DocumentResponse salida de un documento con su rastro fiscal.
type DocumentResponse struct {
	ID               string          `json:"id"`
	DocType          string          `json:"doc_type"`
	DocNumber        string          `json:"doc_number"`
	Reference        string          `json:"reference,omitempty"`
	WarehouseID      string          `json:"warehouse_id"`
	State            string          `json:"state"`
	DocDate          time.Time       `json:"doc_date"`
	PartnerName      string          `json:"partner_name,omitempty"`
	CurrencyCode     string          `json:"currency_code"`
	AmountUntaxed    decimal.Decimal `json:"amount_untaxed"`
	AmountTax        decimal.Decimal `json:"amount_tax"`
	AmountTotal      decimal.Decimal `json:"amount_total"`
	FiscalStatus     string          `json:"fiscal_status"`
	FiscalNumber     string          `json:"fiscal_number,omitempty"`
	ErrorText        string          `json:"error_text,omitempty"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	FiscalizedAt     *time.Time      `json:"fiscalized_at,omitempty"`
	RetryCount       int             `json:"retry_count"`
	QrCodeURL        string          `json:"qr_code_url,omitempty"`
	VerificationCode string          `json:"verification_code,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SubmissionLogResponse un intento de envío del documento.
type SubmissionLogResponse struct {
	ID           string     `json:"id"`
	DocNumber    string     `json:"doc_number"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	FiscalNumber string     `json:"fiscal_number,omitempty"`
	HTTPStatus   int        `json:"http_status,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	FiscalizedAt *time.Time `json:"fiscalized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FiscalConfigRequest alta o edición de una configuración fiscal.
type FiscalConfigRequest struct {
	Name             string `json:"name" validate:"required"`
	WarehouseID      string `json:"warehouse_id" validate:"required"`
	APIURL           string `json:"api_url"`
	APIKey           string `json:"api_key" validate:"required"`
	APISecret        string `json:"api_secret" validate:"required"`
	Active           bool   `json:"active"`
	AutoFiscalize    bool   `json:"auto_fiscalize"`
	AutoSyncTaxes    bool   `json:"auto_sync_taxes"`
	MaxManualRetries int    `json:"max_manual_retries"`
	MaxCronRetries   int    `json:"max_cron_retries"`
	TimeoutSecs      int    `json:"timeout_secs"`
}

// FiscalConfigResponse salida de una configuración (sin el secret).
type FiscalConfigResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	WarehouseID      string    `json:"warehouse_id"`
	APIURL           string    `json:"api_url"`
	HarmonyUserID    string    `json:"harmony_user_id,omitempty"`
	Active           bool      `json:"active"`
	AutoFiscalize    bool      `json:"auto_fiscalize"`
	AutoSyncTaxes    bool      `json:"auto_sync_taxes"`
	MaxManualRetries int        `json:"max_manual_retries"`
	MaxCronRetries   int        `json:"max_cron_retries"`
	TimeoutSecs      int        `json:"timeout_secs"`
	LastSuccessAt    *time.Time `json:"last_success_at,omitempty"`
	TaxesSyncedAt    *time.Time `json:"taxes_synced_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TestConnectionResponse resultado de la prueba de credenciales.
type TestConnectionResponse struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
}

// TaxMappingResponse un mapeo de impuesto de la configuración.
type TaxMappingResponse struct {
	ID           string          `json:"id"`
	LocalTaxID   string          `json:"local_tax_id,omitempty"`
	LocalTaxName string          `json:"local_tax_name,omitempty"`
	TaxCode      string          `json:"tax_code"`
	TaxName      string          `json:"tax_name"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxType      string          `json:"tax_type"`
	Active       bool            `json:"active"`
}

// TaxMappingRequest alta manual de un mapeo de impuesto.
type TaxMappingRequest struct {
	LocalTaxID   string          `json:"local_tax_id"`
	LocalTaxName string          `json:"local_tax_name"`
	TaxCode      string          `json:"tax_code" validate:"required"`
	TaxName      string          `json:"tax_name" validate:"required"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxType      string          `json:"tax_type"`
}

// BindTaxRequest enlaza un impuesto local con un mapeo del dispositivo.
type BindTaxRequest struct {
	LocalTaxID   string `json:"local_tax_id" validate:"required"`
	LocalTaxName string `json:"local_tax_name" validate:"required"`
}

// CurrencyMappingRequest alta de un mapeo de moneda.
type CurrencyMappingRequest struct {
	LocalCurrencyCode string `json:"local_currency_code" validate:"required"`
	ZimraCurrencyCode string `json:"zimra_currency_code" validate:"required"`
}

// CurrencyMappingResponse un mapeo de moneda de la configuración.
type CurrencyMappingResponse struct {
	ID                string `json:"id"`
	LocalCurrencyCode string `json:"local_currency_code"`
	ZimraCurrencyCode string `json:"zimra_currency_code"`
	Active            bool   `json:"active"`
}

// SyncTaxesResponse resultado de la sincronización de impuestos.
type SyncTaxesResponse struct {
	Synced int `json:"synced"`
}

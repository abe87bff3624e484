package harmony

import (
	"bytes"
	"encoding/json"
	"time"
)

// FlexString acepta tanto string como número en el JSON de la autoridad
// (FiscalDay e InvoiceNumber llegan a veces como número).
type FlexString string

// UnmarshalJSON implementa json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String devuelve el valor como string plano.
func (f FlexString) String() string { return string(f) }

// QrData datos de verificación del recibo fiscalizado.
type QrData struct {
	QrCodeURL        string     `json:"QrCodeUrl"`
	VerificationCode string     `json:"VerificationCode"`
	FiscalDay        FlexString `json:"FiscalDay"`
	InvoiceNumber    FlexString `json:"InvoiceNumber"`
}

// StatusResult un elemento de la respuesta de /status.
type StatusResult struct {
	Error            string     `json:"Error"`
	FiscalDay        FlexString `json:"FiscalDay"`
	InvoiceNumber    FlexString `json:"InvoiceNumber"`
	QrData           QrData     `json:"QrData"`
	FiscalInvoicePdf string     `json:"FiscalInvoicePdf"`
	RequestID        string     `json:"RequestId"`
}

// Succeeded la autoridad acepta cuando Error viene vacío.
func (r *StatusResult) Succeeded() bool { return r.Error == "" }

// EffectiveFiscalDay toma FiscalDay del nivel superior o de QrData.
func (r *StatusResult) EffectiveFiscalDay() string {
	if r.FiscalDay != "" {
		return r.FiscalDay.String()
	}
	return r.QrData.FiscalDay.String()
}

// EffectiveInvoiceNumber toma InvoiceNumber del nivel superior o de QrData.
func (r *StatusResult) EffectiveInvoiceNumber() string {
	if r.InvoiceNumber != "" {
		return r.InvoiceNumber.String()
	}
	return r.QrData.InvoiceNumber.String()
}

// Profile respuesta de GET /profile.
type Profile struct {
	ID       FlexString `json:"Id"`
	FullName string     `json:"FullName"`
}

// DeviceTax un impuesto aplicable según GET /fiscaldevice.
type DeviceTax struct {
	TaxID   int    `json:"taxID"`
	TaxName string `json:"taxName"`
}

// deviceResponse respuesta cruda de /fiscaldevice. CurrentConfig llega como
// string con JSON anidado.
type deviceResponse struct {
	CurrentConfig string `json:"CurrentConfig"`
}

type deviceConfig struct {
	ApplicableTaxes []DeviceTax `json:"applicableTaxes"`
}

// TaxMappingPush payload de POST /taxmapping.
type TaxMappingPush struct {
	UserID           int    `json:"UserId"`
	TaxCode          string `json:"TaxCode"`
	TaxName          string `json:"TaxName"`
	DestinationTaxID int    `json:"DestinationTaxId"`
}

// CurrencyMappingPush payload de POST /currencymapping.
type CurrencyMappingPush struct {
	UserID              int    `json:"UserId"`
	SourceCurrency      string `json:"SourceCurrency"`
	DestinationCurrency string `json:"DestinationCurrency"`
}

// Exchange rastro de un intercambio HTTP con la autoridad, para el log de envíos.
type Exchange struct {
	RequestBody  string
	ResponseBody string
	StatusCode   int
	Duration     time.Duration
}

package zimra

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	hsCodePattern = regexp.MustCompile(`\b\d{8,}\b`)
	spacesPattern = regexp.MustCompile(`\s+`)

	tinPattern = regexp.MustCompile(`TIN[:=]\s*(\d+)`)
	vatPattern = regexp.MustCompile(`VAT[:=]\s*(\d+)`)
)

// ExtractHSCode busca un código arancelario (HS, 8+ dígitos) embebido en la
// descripción de un producto. Devuelve la descripción limpia (sin el código,
// espacios colapsados) y el código encontrado, o la descripción original y ""
// si no hay código.
func ExtractHSCode(description string) (clean, hsCode string) {
	hsCode = hsCodePattern.FindString(description)
	if hsCode == "" {
		return description, ""
	}
	clean = strings.Replace(description, hsCode, "", 1)
	clean = strings.TrimSpace(spacesPattern.ReplaceAllString(clean, " "))
	return clean, hsCode
}

// ParseVATField extrae TIN y VAT de un campo combinado tipo "TIN: 123 VAT: 456".
func ParseVATField(vatField string) (tin, vat string) {
	if vatField == "" {
		return "", ""
	}
	if m := tinPattern.FindStringSubmatch(vatField); m != nil {
		tin = m[1]
	}
	if m := vatPattern.FindStringSubmatch(vatField); m != nil {
		vat = m[1]
	}
	return tin, vat
}

// FiscalNumber compone el número fiscal "{InvoiceNumber}/{FiscalDay}".
// Ambas partes son obligatorias; una respuesta sin cualquiera de las dos es
// incompleta y no produce número fiscal.
func FiscalNumber(invoiceNumber, fiscalDay string) (string, error) {
	if invoiceNumber == "" || fiscalDay == "" {
		return "", fmt.Errorf("zimra: respuesta incompleta: falta InvoiceNumber o FiscalDay")
	}
	return invoiceNumber + "/" + fiscalDay, nil
}

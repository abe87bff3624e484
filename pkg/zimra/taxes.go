// Package zimra contiene catálogos y helpers puros alineados al esquema de
// facturación fiscal de ZIMRA (Zimbabue) expuesto por la API Fiscal Harmony.
package zimra

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Tipos de impuesto reconocidos por el dispositivo fiscal.
// Los valores canónicos son los que devuelve /fiscaldevice en applicableTaxes.
// =============================================================================

const (
	TaxTypeExempt        = "Exempt"
	TaxTypeStandardRated = "Standard rated 15%"
	TaxTypeZeroRated     = "Zero rated 0%"
	TaxTypeWithholding   = "Non-VAT Withholding Tax"
)

// TaxInfo describe un impuesto del catálogo del dispositivo.
type TaxInfo struct {
	TaxID int
	Name  string
	Rate  float64
	Code  string
}

// DefaultTaxCatalog catálogo por defecto según la respuesta real del dispositivo.
var DefaultTaxCatalog = map[string]TaxInfo{
	TaxTypeExempt:        {TaxID: 3, Name: TaxTypeExempt, Rate: 0.0, Code: "3"},
	TaxTypeZeroRated:     {TaxID: 2, Name: TaxTypeZeroRated, Rate: 0.0, Code: "2"},
	TaxTypeStandardRated: {TaxID: 1, Name: TaxTypeStandardRated, Rate: 15.0, Code: "1"},
	TaxTypeWithholding:   {TaxID: 514, Name: TaxTypeWithholding, Rate: 5.0, Code: "514"},
}

// ValidTaxTypes tipos de impuesto válidos para mapeos.
var ValidTaxTypes = map[string]bool{
	TaxTypeExempt:        true,
	TaxTypeStandardRated: true,
	TaxTypeZeroRated:     true,
	TaxTypeWithholding:   true,
}

// variantes conocidas de nombres que devuelve la API, ya en minúsculas.
var taxNameVariants = map[string]string{
	"standard rated 15%":      TaxTypeStandardRated,
	"standard rated 15.5%":    TaxTypeStandardRated,
	"standard rate 15%":       TaxTypeStandardRated,
	"standard rate 15.5%":     TaxTypeStandardRated,
	"zero rate 0%":            TaxTypeZeroRated,
	"zero rated 0%":           TaxTypeZeroRated,
	"zero rate":               TaxTypeZeroRated,
	"zero rated":              TaxTypeZeroRated,
	"exempt":                  TaxTypeExempt,
	"tax exempt":              TaxTypeExempt,
	"exempted":                TaxTypeExempt,
	"non-vat withholding tax": TaxTypeWithholding,
	"withholding tax":         TaxTypeWithholding,
	"non vat withholding tax": TaxTypeWithholding,
}

// NormalizeTaxType normaliza un nombre de impuesto devuelto por la API al tipo
// canónico. Escalera: match exacto de variantes conocidas, luego heurística por
// substring, y si nada coincide se asume Exempt.
func NormalizeTaxType(apiTaxName string) string {
	lower := strings.ToLower(strings.TrimSpace(apiTaxName))

	if normalized, ok := taxNameVariants[lower]; ok {
		return normalized
	}

	switch {
	case strings.Contains(lower, "15") || strings.Contains(lower, "standard"):
		return TaxTypeStandardRated
	case strings.Contains(lower, "zero") || strings.Contains(lower, "0%"):
		return TaxTypeZeroRated
	case strings.Contains(lower, "exempt"):
		return TaxTypeExempt
	case strings.Contains(lower, "withholding"):
		return TaxTypeWithholding
	}

	return TaxTypeExempt
}

var ratePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// ExtractRateFromName extrae la tasa porcentual embebida en un nombre de
// impuesto ("Standard rated 15%" → 15). Devuelve 0 y false si no hay tasa.
func ExtractRateFromName(taxName string) (float64, bool) {
	m := ratePattern.FindStringSubmatch(taxName)
	if m == nil {
		return 0, false
	}
	rate, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return rate, true
}

// IsDiscountDescription reconoce líneas que representan descuentos a nivel de
// recibo (programas de lealtad, descuentos globales del POS).
func IsDiscountDescription(description string) bool {
	lower := strings.ToLower(description)
	return strings.Contains(lower, "discount") || strings.Contains(lower, "loyalty")
}

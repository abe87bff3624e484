package fiscal

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/pkg/zimra"
)

// FallbackCurrencyCode moneda usada cuando el host no tiene mapeo para la suya.
const FallbackCurrencyCode = "USD"

// timestampLayout formato de fecha que espera la autoridad (ISO 8601 sin zona).
const timestampLayout = "2006-01-02T15:04:05"

var refundSuffixPattern = regexp.MustCompile(`\s+REFUND$`)

// DecideKind determina la polaridad del documento. Se decide una sola vez:
// enlace de reversión > total negativo > sufijo " REFUND" en el número.
func DecideKind(doc *entity.FiscalDocument) DocumentKind {
	switch {
	case doc.ReversedDocNumber != "":
		return KindCreditNote
	case doc.AmountTotal.IsNegative():
		return KindCreditNote
	case refundSuffixPattern.MatchString(strings.TrimRight(doc.DocNumber, " ")):
		return KindCreditNote
	}
	return KindInvoice
}

// Build construye el payload fiscal de un documento. taxByLocalID indexa los
// mapeos de impuesto por ID local; currencyByLocal mapea moneda local → código
// ZIMRA. now se usa como fecha de emisión para ventas POS y como reloj del
// builder (el builder no consulta el sistema).
//
// Devuelve *domain.ValidationError cuando el documento no puede convertirse:
// sin mapeos de impuestos, sin mapeos de moneda o sin líneas elegibles.
func Build(doc *entity.FiscalDocument, taxByLocalID map[string]entity.TaxMapping, currencyByLocal map[string]string, now time.Time) (*Result, error) {
	if len(taxByLocalID) == 0 {
		return nil, &domain.ValidationError{Doc: doc.DocNumber, Reason: "sin mapeos de impuestos en la configuración"}
	}
	if len(currencyByLocal) == 0 {
		return nil, &domain.ValidationError{Doc: doc.DocNumber, Reason: "sin mapeos de moneda en la configuración"}
	}

	kind := DecideKind(doc)

	currencyCode := FallbackCurrencyCode
	if code, ok := currencyByLocal[doc.CurrencyCode]; ok && code != "" {
		currencyCode = code
	}

	items, hasDiscount, err := buildLineItems(doc, kind, taxByLocalID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &domain.ValidationError{Doc: doc.DocNumber, Reason: "sin líneas elegibles para fiscalizar"}
	}

	buyer := buildBuyerContact(doc)
	timestamp := buildTimestamp(doc, now)
	isRetry := doc.RetryCount > 0

	if kind == KindCreditNote {
		return &Result{
			Kind: KindCreditNote,
			CreditNote: &CreditNotePayload{
				CreditNoteID:      doc.DocNumber,
				CreditNoteNumber:  doc.DocNumber,
				OriginalInvoiceID: originalInvoiceID(doc),
				Reference:         doc.Reference,
				IsDiscounted:      hasDiscount,
				IsTaxInclusive:    true,
				BuyerContact:      buyer,
				Date:              timestamp,
				LineItems:         items,
				SubTotal:          doc.AmountUntaxed.Abs().StringFixed(2),
				TotalTax:          doc.AmountTax.Abs().StringFixed(2),
				Total:             doc.AmountTotal.Abs().StringFixed(2),
				CurrencyCode:      currencyCode,
				IsRetry:           isRetry,
			},
		}, nil
	}

	return &Result{
		Kind: KindInvoice,
		Invoice: &InvoicePayload{
			InvoiceID:      doc.DocNumber,
			InvoiceNumber:  doc.DocNumber,
			Reference:      doc.Reference,
			IsDiscounted:   hasDiscount,
			IsTaxInclusive: true,
			BuyerContact:   buyer,
			Date:           timestamp,
			LineItems:      items,
			SubTotal:       doc.AmountUntaxed.StringFixed(2),
			TotalTax:       doc.AmountTax.StringFixed(2),
			Total:          doc.AmountTotal.StringFixed(2),
			CurrencyCode:   currencyCode,
			IsRetry:        isRetry,
		},
	}, nil
}

// originalInvoiceID referencia a la factura original de una nota de crédito:
// el enlace de reversión si existe, si no el número sin el sufijo " REFUND".
func originalInvoiceID(doc *entity.FiscalDocument) string {
	if doc.ReversedDocNumber != "" {
		return doc.ReversedDocNumber
	}
	return strings.TrimSpace(refundSuffixPattern.ReplaceAllString(doc.DocNumber, ""))
}

func buildTimestamp(doc *entity.FiscalDocument, now time.Time) string {
	// Ventas POS llevan la hora de envío; facturas llevan la fecha del documento.
	if doc.DocType == entity.DocTypePOSOrder || doc.DocDate.IsZero() {
		return now.Format(timestampLayout)
	}
	return doc.DocDate.Format(timestampLayout)
}

func buildBuyerContact(doc *entity.FiscalDocument) BuyerContact {
	tin := doc.PartnerTIN
	vat := doc.PartnerVAT
	if tin == "" && vat != "" {
		// Campo combinado tipo "TIN: 123 VAT: 456"
		if t, v := zimra.ParseVATField(vat); t != "" || v != "" {
			tin, vat = t, v
		}
	}
	return BuyerContact{
		Name:      doc.PartnerName,
		Tin:       nullable(tin),
		VatNumber: nullable(vat),
		Address: Address{
			Province: doc.PartnerProvince,
			Street:   doc.PartnerStreet,
			HouseNo:  doc.PartnerHouseNo,
			City:     doc.PartnerCity,
		},
		Phone: doc.PartnerPhone,
		Email: doc.PartnerEmail,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// lineBasis montos intermedios de una línea, antes de formatear.
type lineBasis struct {
	item     LineItem
	gross    decimal.Decimal // unitario reportado × cantidad, con impuesto
	subtotal decimal.Decimal // base para el prorrateo de descuentos de recibo
	discount decimal.Decimal
}

func buildLineItems(doc *entity.FiscalDocument, kind DocumentKind, taxByLocalID map[string]entity.TaxMapping) ([]LineItem, bool, error) {
	var (
		bases        []lineBasis
		pooled       = decimal.Zero // descuentos a nivel de recibo, agrupados
		hasDiscount  bool
		creditValues = kind == KindCreditNote
	)

	for _, line := range doc.Lines {
		if !line.IsProduct() {
			continue
		}

		// Las líneas de descuento de recibo (lealtad, descuento global del POS)
		// no viajan como líneas: su monto se prorratea entre las de producto.
		if zimra.IsDiscountDescription(line.Description) || (!creditValues && line.PriceSubtotal.IsNegative()) {
			pooled = pooled.Add(line.PriceTotal.Abs())
			continue
		}

		qty := line.Quantity
		unit := line.UnitPrice
		subtotal := line.PriceSubtotal
		total := line.PriceTotal
		if creditValues {
			qty = qty.Abs()
			unit = unit.Abs()
			subtotal = subtotal.Abs()
			total = total.Abs()
		}

		// Descuento de línea: diferencia entre bruto (unitario × cantidad) y
		// subtotal, en la base sin impuesto del host.
		discountExcl := unit.Mul(qty).Sub(subtotal)
		if discountExcl.IsNegative() {
			discountExcl = decimal.Zero
		}

		// El payload viaja tax-inclusive, así que unitario y descuento se
		// reexpresan en esa base: el descuento se escala por el factor de
		// impuesto de la línea y el unitario se deriva del total bruto, de
		// modo que LineAmount = unitario × cantidad − descuento cuadre.
		discount := discountExcl
		if subtotal.IsPositive() {
			discount = discountExcl.Mul(total).Div(subtotal).Round(2)
		}
		if discount.IsPositive() {
			hasDiscount = true
		}
		grossIncl := total.Add(discount)
		unitIncl := grossIncl
		if !qty.IsZero() {
			unitIncl = grossIncl.Div(qty).Round(3)
		}
		lineGross := unitIncl.Mul(qty)
		if qty.IsZero() {
			lineGross = grossIncl
		}

		name, hsCode := line.Description, line.ProductCode
		if hsCode == "" {
			name, hsCode = zimra.ExtractHSCode(line.Description)
		}

		taxCode := ""
		if m, ok := taxByLocalID[line.LocalTaxID]; ok {
			taxCode = m.TaxCode
		}

		bases = append(bases, lineBasis{
			item: LineItem{
				Description: name,
				UnitAmount:  unitIncl.StringFixed(3),
				TaxCode:     taxCode,
				ProductCode: hsCode,
				Quantity:    qty.StringFixed(3),
			},
			gross:    lineGross,
			subtotal: subtotal.Abs(),
			discount: discount,
		})
	}

	if pooled.IsPositive() && len(bases) > 0 {
		hasDiscount = true
		allocatePooledDiscount(bases, pooled)
	}

	items := make([]LineItem, 0, len(bases))
	for _, b := range bases {
		b.item.DiscountAmount = b.discount.StringFixed(2)
		b.item.LineAmount = b.gross.Sub(b.discount).Round(2).StringFixed(2)
		items = append(items, b.item)
	}
	return items, hasDiscount, nil
}

// allocatePooledDiscount reparte el descuento agrupado entre las líneas en
// proporción a su subtotal. Cada cuota se redondea a 2 decimales y la última
// línea absorbe el remanente, de modo que la suma reproduce el total exacto.
func allocatePooledDiscount(bases []lineBasis, pooled decimal.Decimal) {
	totalBase := decimal.Zero
	for _, b := range bases {
		totalBase = totalBase.Add(b.subtotal)
	}

	remaining := pooled
	for i := range bases {
		var share decimal.Decimal
		if i == len(bases)-1 {
			share = remaining
		} else if totalBase.IsPositive() {
			share = pooled.Mul(bases[i].subtotal).Div(totalBase).Round(2)
		}
		if share.GreaterThan(remaining) {
			share = remaining
		}
		bases[i].discount = bases[i].discount.Add(share)
		remaining = remaining.Sub(share)
	}
}

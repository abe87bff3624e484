package fiscal

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTaxMappings() map[string]entity.TaxMapping {
	return map[string]entity.TaxMapping{
		"tax-15": {LocalTaxID: "tax-15", TaxCode: "1", TaxName: "Standard rated 15%"},
		"tax-0":  {LocalTaxID: "tax-0", TaxCode: "2", TaxName: "Zero rated 0%"},
	}
}

func testCurrencyMappings() map[string]string {
	return map[string]string{"USD": "USD", "ZWG": "ZWG"}
}

func baseInvoice() *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID:            "doc-1",
		DocType:       entity.DocTypeInvoice,
		DocNumber:     "INV/2025/0042",
		Reference:     "SO123",
		State:         entity.DocStatePosted,
		DocDate:       time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC),
		CurrencyCode:  "USD",
		PartnerName:   "Cliente Prueba",
		AmountUntaxed: dec("100.00"),
		AmountTax:     dec("15.00"),
		AmountTotal:   dec("115.00"),
		Lines: []entity.DocumentLine{
			{
				Description:   "Cooking Oil 2L 15079000",
				Quantity:      dec("2"),
				UnitPrice:     dec("50"),
				PriceSubtotal: dec("100"),
				PriceTotal:    dec("115"),
				LocalTaxID:    "tax-15",
			},
		},
	}
}

func TestBuild_Factura(t *testing.T) {
	doc := baseInvoice()
	now := time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), now)
	require.NoError(t, err)
	require.Equal(t, KindInvoice, res.Kind)
	require.NotNil(t, res.Invoice)
	assert.Nil(t, res.CreditNote)
	assert.Equal(t, EndpointInvoice, res.Endpoint())

	inv := res.Invoice
	assert.Equal(t, "INV/2025/0042", inv.InvoiceID)
	assert.Equal(t, "100.00", inv.SubTotal)
	assert.Equal(t, "15.00", inv.TotalTax)
	assert.Equal(t, "115.00", inv.Total)
	assert.Equal(t, "USD", inv.CurrencyCode)
	assert.True(t, inv.IsTaxInclusive)
	assert.False(t, inv.IsRetry)
	// Factura lleva la fecha del documento, no la de envío
	assert.Equal(t, "2025-08-14T10:30:00", inv.Date)

	require.Len(t, inv.LineItems, 1)
	li := inv.LineItems[0]
	assert.Equal(t, "Cooking Oil 2L", li.Description, "el código HS debe salir de la descripción")
	assert.Equal(t, "15079000", li.ProductCode)
	assert.Equal(t, "1", li.TaxCode)
	assert.Equal(t, "57.500", li.UnitAmount, "el unitario viaja con impuesto incluido")
	assert.Equal(t, "2.000", li.Quantity)
	assert.Equal(t, "115.00", li.LineAmount)
	assert.Equal(t, "0.00", li.DiscountAmount)
}

// Cada línea debe cuadrar: LineAmount = unitario × cantidad − descuento,
// redondeado a 2 decimales, con todos los montos en base tax-inclusive.
func TestBuild_LineaCuadraUnitarioPorCantidadMenosDescuento(t *testing.T) {
	cases := []struct {
		name string
		doc  *entity.FiscalDocument
	}{
		{"línea gravada sin descuento", baseInvoice()},
		{"línea gravada con descuento", func() *entity.FiscalDocument {
			doc := baseInvoice()
			doc.Lines[0].PriceSubtotal = dec("90")
			doc.Lines[0].PriceTotal = dec("103.50")
			return doc
		}()},
		{"descuento de recibo prorrateado", func() *entity.FiscalDocument {
			doc := baseInvoice()
			doc.Lines = []entity.DocumentLine{
				{Description: "A", Quantity: dec("3"), UnitPrice: dec("11"), PriceSubtotal: dec("33"), PriceTotal: dec("37.95"), LocalTaxID: "tax-15"},
				{Description: "B", Quantity: dec("1"), UnitPrice: dec("7"), PriceSubtotal: dec("7"), PriceTotal: dec("8.05"), LocalTaxID: "tax-15"},
				{Description: "Global Discount", Quantity: dec("1"), UnitPrice: dec("-5"), PriceSubtotal: dec("-5"), PriceTotal: dec("-5")},
			}
			return doc
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Build(tc.doc, testTaxMappings(), testCurrencyMappings(), time.Now())
			require.NoError(t, err)
			for _, li := range res.Invoice.LineItems {
				expected := dec(li.UnitAmount).Mul(dec(li.Quantity)).Sub(dec(li.DiscountAmount)).Round(2)
				assert.True(t, expected.Equal(dec(li.LineAmount)),
					"línea %s: unitario %s × cantidad %s − descuento %s = %s, LineAmount %s",
					li.Description, li.UnitAmount, li.Quantity, li.DiscountAmount, expected, li.LineAmount)
			}
		})
	}
}

func TestBuild_FechaPOSEsLaDeEnvio(t *testing.T) {
	doc := baseInvoice()
	doc.DocType = entity.DocTypePOSOrder
	now := time.Date(2025, 8, 20, 9, 5, 6, 0, time.UTC)

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), now)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-20T09:05:06", res.Invoice.Date)
}

func TestDecideKind(t *testing.T) {
	t.Run("enlace de reversión gana", func(t *testing.T) {
		doc := baseInvoice()
		doc.ReversedDocNumber = "INV/2025/0001"
		assert.Equal(t, KindCreditNote, DecideKind(doc))
	})

	t.Run("total negativo", func(t *testing.T) {
		doc := baseInvoice()
		doc.AmountTotal = dec("-115.00")
		assert.Equal(t, KindCreditNote, DecideKind(doc))
	})

	t.Run("sufijo REFUND", func(t *testing.T) {
		doc := baseInvoice()
		doc.DocNumber = "Order 00017-001-0001 REFUND"
		assert.Equal(t, KindCreditNote, DecideKind(doc))
	})

	t.Run("REFUND sin espacio previo no cuenta", func(t *testing.T) {
		doc := baseInvoice()
		doc.DocNumber = "ORDERREFUND"
		assert.Equal(t, KindInvoice, DecideKind(doc))
	})

	t.Run("documento normal", func(t *testing.T) {
		assert.Equal(t, KindInvoice, DecideKind(baseInvoice()))
	})
}

func TestBuild_NotaDeCredito(t *testing.T) {
	doc := baseInvoice()
	doc.DocNumber = "Order 00017 REFUND"
	doc.AmountUntaxed = dec("-100.00")
	doc.AmountTax = dec("-15.00")
	doc.AmountTotal = dec("-115.00")
	doc.RetryCount = 1
	doc.Lines[0].Quantity = dec("-2")
	doc.Lines[0].PriceSubtotal = dec("-100")
	doc.Lines[0].PriceTotal = dec("-115")

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	require.Equal(t, KindCreditNote, res.Kind)
	require.NotNil(t, res.CreditNote)
	assert.Equal(t, EndpointCreditNote, res.Endpoint())

	cn := res.CreditNote
	assert.Equal(t, "Order 00017 REFUND", cn.CreditNoteID)
	assert.Equal(t, "Order 00017", cn.OriginalInvoiceID, "la referencia original pierde el sufijo REFUND")
	assert.Equal(t, "100.00", cn.SubTotal, "los montos van en magnitud absoluta")
	assert.Equal(t, "15.00", cn.TotalTax)
	assert.Equal(t, "115.00", cn.Total)
	assert.True(t, cn.IsRetry)

	require.Len(t, cn.LineItems, 1)
	assert.Equal(t, "2.000", cn.LineItems[0].Quantity)
	assert.Equal(t, "115.00", cn.LineItems[0].LineAmount)
}

func TestBuild_NotaDeCreditoConEnlaceDeReversion(t *testing.T) {
	doc := baseInvoice()
	doc.ReversedDocNumber = "INV/2025/0001"

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	require.Equal(t, KindCreditNote, res.Kind)
	assert.Equal(t, "INV/2025/0001", res.CreditNote.OriginalInvoiceID)
}

func TestBuild_MonedaSinMapeoCaeAUSD(t *testing.T) {
	doc := baseInvoice()
	doc.CurrencyCode = "ZAR" // sin mapeo

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "USD", res.Invoice.CurrencyCode)
}

func TestBuild_ImpuestoSinMapeoDejaTaxCodeVacio(t *testing.T) {
	doc := baseInvoice()
	doc.Lines[0].LocalTaxID = "tax-desconocido"

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Invoice.LineItems[0].TaxCode)
}

func TestBuild_Validaciones(t *testing.T) {
	t.Run("sin mapeos de impuestos", func(t *testing.T) {
		_, err := Build(baseInvoice(), map[string]entity.TaxMapping{}, testCurrencyMappings(), time.Now())
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Reason, "impuestos")
	})

	t.Run("sin mapeos de moneda", func(t *testing.T) {
		_, err := Build(baseInvoice(), testTaxMappings(), map[string]string{}, time.Now())
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Reason, "moneda")
	})

	t.Run("sin líneas elegibles", func(t *testing.T) {
		doc := baseInvoice()
		doc.Lines = []entity.DocumentLine{
			{Description: "Sección", DisplayType: entity.DisplayTypeSection},
			{Description: "Nota al pie", DisplayType: entity.DisplayTypeNote},
		}
		_, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Reason, "líneas")
	})
}

func TestBuild_DescuentoDeLinea(t *testing.T) {
	doc := baseInvoice()
	// Bruto 100, subtotal 90: descuento de 10 sin impuesto, 11.50 con el 15%
	doc.Lines[0].UnitPrice = dec("50")
	doc.Lines[0].Quantity = dec("2")
	doc.Lines[0].PriceSubtotal = dec("90")
	doc.Lines[0].PriceTotal = dec("103.50")

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Invoice.IsDiscounted)

	li := res.Invoice.LineItems[0]
	assert.Equal(t, "11.50", li.DiscountAmount, "el descuento viaja en la misma base tax-inclusive que el total")
	assert.Equal(t, "57.500", li.UnitAmount)
	assert.Equal(t, "103.50", li.LineAmount)
}

func TestBuild_DescuentoDeReciboProrrateado(t *testing.T) {
	doc := baseInvoice()
	doc.Lines = []entity.DocumentLine{
		{
			Description:   "Producto A",
			Quantity:      dec("1"),
			UnitPrice:     dec("30"),
			PriceSubtotal: dec("30"),
			PriceTotal:    dec("34.50"),
			LocalTaxID:    "tax-15",
		},
		{
			Description:   "Producto B",
			Quantity:      dec("1"),
			UnitPrice:     dec("70"),
			PriceSubtotal: dec("70"),
			PriceTotal:    dec("80.50"),
			LocalTaxID:    "tax-15",
		},
		{
			// Línea de descuento global del POS: no viaja como línea
			Description:   "Global Discount",
			Quantity:      dec("1"),
			UnitPrice:     dec("-10"),
			PriceSubtotal: dec("-10"),
			PriceTotal:    dec("-10"),
		},
	}

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	require.Len(t, res.Invoice.LineItems, 2, "la línea de descuento no debe viajar")
	assert.True(t, res.Invoice.IsDiscounted)

	// 10 prorrateado 30/70: 3.00 y 7.00; la suma reproduce el total exacto
	assert.Equal(t, "3.00", res.Invoice.LineItems[0].DiscountAmount)
	assert.Equal(t, "7.00", res.Invoice.LineItems[1].DiscountAmount)

	// La cuota asignada también rebaja el total de la línea.
	assert.Equal(t, "31.50", res.Invoice.LineItems[0].LineAmount)
	assert.Equal(t, "73.50", res.Invoice.LineItems[1].LineAmount)
}

func TestBuild_DescuentoDeReciboRemanenteALaUltimaLinea(t *testing.T) {
	doc := baseInvoice()
	doc.Lines = []entity.DocumentLine{
		{Description: "A", Quantity: dec("1"), UnitPrice: dec("10"), PriceSubtotal: dec("10"), PriceTotal: dec("10"), LocalTaxID: "tax-0"},
		{Description: "B", Quantity: dec("1"), UnitPrice: dec("10"), PriceSubtotal: dec("10"), PriceTotal: dec("10"), LocalTaxID: "tax-0"},
		{Description: "C", Quantity: dec("1"), UnitPrice: dec("10"), PriceSubtotal: dec("10"), PriceTotal: dec("10"), LocalTaxID: "tax-0"},
		{Description: "Loyalty redemption", Quantity: dec("1"), UnitPrice: dec("-0.10"), PriceSubtotal: dec("-0.10"), PriceTotal: dec("-0.10")},
	}

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	require.Len(t, res.Invoice.LineItems, 3)

	// 0.10 / 3 = 0.0333... → 0.03 + 0.03 + remanente 0.04
	total := decimal.Zero
	for _, li := range res.Invoice.LineItems {
		total = total.Add(dec(li.DiscountAmount))
	}
	assert.True(t, total.Equal(dec("0.10")), "la suma de cuotas debe reproducir el descuento exacto, suma %s", total)
	assert.Equal(t, "0.04", res.Invoice.LineItems[2].DiscountAmount, "la última línea absorbe el remanente")
}

func TestBuild_ContactoComprador(t *testing.T) {
	doc := baseInvoice()
	doc.PartnerVAT = "TIN: 1234567 VAT: 7654321"
	doc.PartnerCity = "Harare"

	res, err := Build(doc, testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)

	buyer := res.Invoice.BuyerContact
	require.NotNil(t, buyer.Tin)
	require.NotNil(t, buyer.VatNumber)
	assert.Equal(t, "1234567", *buyer.Tin)
	assert.Equal(t, "7654321", *buyer.VatNumber)
	assert.Equal(t, "Harare", buyer.Address.City)
}

func TestBuild_CompradorSinIdentificacion(t *testing.T) {
	res, err := Build(baseInvoice(), testTaxMappings(), testCurrencyMappings(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, res.Invoice.BuyerContact.Tin, "TIN vacío debe viajar como null")
	assert.Nil(t, res.Invoice.BuyerContact.VatNumber)
}

// Package pdf genera la representación gráfica local del recibo fiscalizado
// ante ZIMRA, con su número fiscal y el QR de verificación.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Tipo de documento  │  N° Documento + Fecha         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  COMPRADOR: Nombre + TIN/VAT + contacto                     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | Subtotal              │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / Impuestos / TOTAL                      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER FISCAL: N° fiscal + QR + código de verificación     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoReceiptGenerator genera el recibo fiscal con Maroto v2.
type MarotoReceiptGenerator struct{}

// NewMarotoReceiptGenerator construye el generador.
func NewMarotoReceiptGenerator() *MarotoReceiptGenerator { return &MarotoReceiptGenerator{} }

// GenerateReceiptPDF genera el PDF del documento fiscalizado y devuelve sus bytes.
func (g *MarotoReceiptGenerator) GenerateReceiptPDF(_ context.Context, doc *entity.FiscalDocument) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Recibo Fiscal ZIMRA", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(buyerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(doc.Lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range fiscalFooterRows(doc) {
		m.AddRows(r)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func documentTitle(doc *entity.FiscalDocument) string {
	if doc.IsRefund() || doc.AmountTotal.IsNegative() {
		return "NOTA DE CRÉDITO FISCAL"
	}
	return "FACTURA FISCAL"
}

// headerRow: tipo de documento (izq) y número + fecha (der).
func headerRow(doc *entity.FiscalDocument) core.Row {
	fecha := doc.DocDate.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(documentTitle(doc), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Moneda: "+doc.CurrencyCode, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(doc.DocNumber, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 4,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 12, Color: colorGray,
			}),
		),
	)
}

// buyerRow: datos del comprador.
func buyerRow(doc *entity.FiscalDocument) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("COMPRADOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(doc.PartnerName, "Consumidor final"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("TIN: %s   |   VAT: %s   |   Email: %s   |   Tel: %s",
				nonEmpty(doc.PartnerTIN, "—"),
				nonEmpty(doc.PartnerVAT, "—"),
				nonEmpty(doc.PartnerEmail, "—"),
				nonEmpty(doc.PartnerPhone, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Impuesto", 1, align.Center),
		h("Subtotal", 3, align.Right),
	)
}

// tableDetailRows: una fila por línea de producto. Las líneas de nota se omiten.
func tableDetailRows(lines []entity.DocumentLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		if !l.IsProduct() {
			continue
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				l.Quantity.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				l.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				l.UnitPrice.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				nonEmpty(l.TaxName, "—"),
				props.Text{Size: 7, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				l.PriceSubtotal.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(doc *entity.FiscalDocument) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Subtotal:"),
			label("Impuestos:"),
			grandLabel("TOTAL:"),
		),
		col.New(3).Add(
			value(doc.AmountUntaxed.StringFixed(2)+" "+doc.CurrencyCode),
			value(doc.AmountTax.StringFixed(2)+" "+doc.CurrencyCode),
			grandValue(doc.AmountTotal.StringFixed(2)+" "+doc.CurrencyCode),
		),
		col.New(3),
	)
}

// fiscalFooterRows: número fiscal + QR de verificación.
func fiscalFooterRows(doc *entity.FiscalDocument) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMACIÓN FISCAL ZIMRA", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}

	if doc.FiscalNumber != "" {
		rows = append(rows, row.New(6).Add(col.New(12).Add(
			text.New("Número fiscal: "+doc.FiscalNumber, props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 1,
			}),
		)))
	}
	if doc.VerificationCode != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Código de verificación: "+doc.VerificationCode, props.Text{
				Size: 8, Top: 1, Color: colorGray,
			}),
		)))
	}

	rows = append(rows, row.New(3))

	if doc.QrCodeURL != "" {
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(doc.QrCodeURL, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Escanea el código QR para verificar\neste recibo ante ZIMRA.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("RECIBO FISCALIZADO", props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	} else {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Documento pendiente de verificación fiscal", props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorGray, Top: 2,
			}),
		)))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"Recibo generado localmente a partir de la respuesta de fiscalización. "+
				"El documento oficial es el emitido por la autoridad fiscal.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

package fiscal

import (
	"context"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
)

// HarmonyClient puerto del cliente firmado contra la autoridad. Una instancia
// por configuración fiscal (las credenciales viven en la config de la bodega).
type HarmonyClient interface {
	SubmitDocument(ctx context.Context, route string, payload any) (*harmony.StatusResult, *harmony.Exchange, error)
	FetchProfile(ctx context.Context) (*harmony.Profile, error)
	FetchDeviceTaxes(ctx context.Context) ([]harmony.DeviceTax, error)
	DownloadPDF(ctx context.Context, ref string) ([]byte, error)
	PushTaxMapping(ctx context.Context, p harmony.TaxMappingPush) error
	PushCurrencyMapping(ctx context.Context, p harmony.CurrencyMappingPush) error
}

// ClientFactory construye un cliente para las credenciales de una configuración.
type ClientFactory func(cfg *entity.FiscalConfig) HarmonyClient

// TaxSyncTxRunner ejecuta el replace de mapeos de impuestos en una transacción:
// el borrado y la recreación deben ser atómicos.
type TaxSyncTxRunner interface {
	RunTaxSync(ctx context.Context, fn func(taxRepo repository.TaxMappingRepository) error) error
}

// IngestTxRunner ejecuta el ingest de un documento (cabecera + líneas) en una transacción.
type IngestTxRunner interface {
	RunIngest(ctx context.Context, fn func(docRepo repository.FiscalDocumentRepository) error) error
}

// ReceiptPDFGenerator genera la representación gráfica local del recibo.
type ReceiptPDFGenerator interface {
	GenerateReceiptPDF(ctx context.Context, doc *entity.FiscalDocument) ([]byte, error)
}

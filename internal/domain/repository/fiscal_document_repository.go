package repository

import (
	"context"
	"time"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// FiscalDocumentRepository puerto de persistencia para documentos fiscales y sus líneas.
type FiscalDocumentRepository interface {
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// Update persiste todos los campos del rastro fiscal:
	// fiscal_status, fiscal_number, response, error_text, sent_at, fiscalized_at,
	// retry_count, qr_code_url, verification_code, fiscal_pdf_ref, fiscal_pdf_data.
	Update(ctx context.Context, doc *entity.FiscalDocument) error

	// FindFiscalizedByNumber busca otro documento ya fiscalizado con el mismo
	// número en la misma bodega (detección de duplicados). Devuelve nil si no hay.
	FindFiscalizedByNumber(ctx context.Context, docNumber, warehouseID, excludeID string) (*entity.FiscalDocument, error)

	// AcquireLease toma el lease de envío del documento: update-if-unset.
	// Un lease existente más viejo que staleBefore se considera huérfano y se
	// puede re-adquirir. Devuelve false si otro proceso lo tiene vigente.
	AcquireLease(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	// ReleaseLease libera el lease (solo se llama en transición terminal o fallo).
	ReleaseLease(ctx context.Context, id string) error

	// ListFailedForRetry documentos en failed y finalizados en el host. El tope
	// de reintentos es por configuración y lo aplica el orquestador de envíos.
	ListFailedForRetry(ctx context.Context) ([]*entity.FiscalDocument, error)
	// ListStaleSent documentos atascados en sent con lease más viejo que staleBefore.
	ListStaleSent(ctx context.Context, staleBefore time.Time) ([]*entity.FiscalDocument, error)
}

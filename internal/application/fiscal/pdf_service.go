package fiscal

import (
	"context"
	"encoding/base64"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

// PDFService resuelve el PDF del recibo de un documento: primero el oficial
// guardado, luego el oficial descargable de la autoridad, y como último
// recurso la representación gráfica generada localmente.
type PDFService struct {
	docRepo    repository.FiscalDocumentRepository
	configRepo repository.FiscalConfigRepository
	clients    ClientFactory
	generator  ReceiptPDFGenerator
	log        *logger.Logger
}

// NewPDFService construye el servicio.
func NewPDFService(
	docRepo repository.FiscalDocumentRepository,
	configRepo repository.FiscalConfigRepository,
	clients ClientFactory,
	generator ReceiptPDFGenerator,
	log *logger.Logger,
) *PDFService {
	return &PDFService{
		docRepo:    docRepo,
		configRepo: configRepo,
		clients:    clients,
		generator:  generator,
		log:        log,
	}
}

// ReceiptPDF devuelve los bytes del PDF del recibo.
func (s *PDFService) ReceiptPDF(ctx context.Context, documentID string) ([]byte, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.FiscalPdfData != "" {
		data, err := base64.StdEncoding.DecodeString(doc.FiscalPdfData)
		if err == nil {
			return data, nil
		}
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("PDF guardado corrupto, se regenera")
	}

	if doc.FiscalPdfRef != "" {
		if data := s.fetchOfficial(ctx, doc); data != nil {
			return data, nil
		}
	}

	return s.generator.GenerateReceiptPDF(ctx, doc)
}

// GraphicPDF genera siempre la representación gráfica local del recibo,
// ignorando el PDF oficial guardado.
func (s *PDFService) GraphicPDF(ctx context.Context, documentID string) ([]byte, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.generator.GenerateReceiptPDF(ctx, doc)
}

// fetchOfficial descarga el PDF oficial y lo deja cacheado en el documento.
// Devuelve nil si no se pudo (el caller cae al generador local).
func (s *PDFService) fetchOfficial(ctx context.Context, doc *entity.FiscalDocument) []byte {
	cfg, err := s.configRepo.GetActiveByWarehouse(ctx, doc.WarehouseID)
	if err != nil {
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("sin configuración para descargar el PDF oficial")
		return nil
	}

	data, err := s.clients(cfg).DownloadPDF(ctx, doc.FiscalPdfRef)
	if err != nil {
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("no se pudo descargar el PDF oficial")
		return nil
	}

	doc.FiscalPdfData = base64.StdEncoding.EncodeToString(data)
	if err := s.docRepo.Update(ctx, doc); err != nil {
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("no se pudo cachear el PDF oficial")
	}
	return data
}

package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

// Ingestor recibe documentos del host (facturas, ventas POS) y los persiste
// con su rastro fiscal inicial. Si la bodega tiene fiscalización automática,
// dispara el envío en una goroutine independiente del ciclo HTTP.
type Ingestor struct {
	txRunner   IngestTxRunner
	configRepo repository.FiscalConfigRepository
	submitter  *Submitter
	log        *logger.Logger

	submitTimeout time.Duration
}

// NewIngestor construye el ingestor.
func NewIngestor(
	txRunner IngestTxRunner,
	configRepo repository.FiscalConfigRepository,
	submitter *Submitter,
	log *logger.Logger,
) *Ingestor {
	return &Ingestor{
		txRunner:      txRunner,
		configRepo:    configRepo,
		submitter:     submitter,
		log:           log,
		submitTimeout: 60 * time.Second,
	}
}

// Ingest persiste el documento (cabecera + líneas, atómico) y, si aplica,
// dispara la fiscalización automática. El ingest nunca falla por un fallo de
// fiscalización: eso queda registrado en el documento y sus logs.
func (i *Ingestor) Ingest(ctx context.Context, doc *entity.FiscalDocument) error {
	if err := validateIngest(doc); err != nil {
		return err
	}
	if doc.FiscalStatus == "" {
		doc.FiscalStatus = entity.FiscalStatusPending
	}

	err := i.txRunner.RunIngest(ctx, func(docRepo repository.FiscalDocumentRepository) error {
		return docRepo.Create(ctx, doc)
	})
	if err != nil {
		return err
	}

	i.log.Info().
		Str("document", doc.DocNumber).
		Str("doc_type", doc.DocType).
		Str("warehouse_id", doc.WarehouseID).
		Msg("documento ingresado")

	if i.shouldAutoFiscalize(ctx, doc) {
		i.submitAsync(doc.ID, doc.DocNumber)
	}
	return nil
}

func validateIngest(doc *entity.FiscalDocument) error {
	if doc.DocNumber == "" {
		return fmt.Errorf("%w: número de documento obligatorio", domain.ErrInvalidInput)
	}
	if doc.WarehouseID == "" {
		return fmt.Errorf("%w: bodega obligatoria", domain.ErrInvalidInput)
	}
	switch doc.DocType {
	case entity.DocTypeInvoice, entity.DocTypePOSOrder:
	default:
		return fmt.Errorf("%w: tipo de documento %q desconocido", domain.ErrInvalidInput, doc.DocType)
	}
	return nil
}

func (i *Ingestor) shouldAutoFiscalize(ctx context.Context, doc *entity.FiscalDocument) bool {
	if !doc.Finalized() || doc.FiscalStatus != entity.FiscalStatusPending {
		return false
	}
	cfg, err := i.configRepo.GetActiveByWarehouse(ctx, doc.WarehouseID)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigMissing) {
			i.log.Error().Err(err).Str("warehouse_id", doc.WarehouseID).Msg("error consultando configuración fiscal")
		}
		return false
	}
	return cfg.AutoFiscalize
}

// submitAsync fiscaliza en una goroutine independiente, desacoplada del ciclo
// HTTP del ingest, con su propio timeout. El disparo es automático, así que
// aplica el tope de reintentos del barrido, no el manual.
func (i *Ingestor) submitAsync(documentID, docNumber string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.submitTimeout)
		defer cancel()

		if err := i.submitter.Submit(ctx, documentID, false); err != nil {
			i.log.Document(docNumber).Warn().Err(err).Msg("fiscalización automática fallida")
		}
	}()
}

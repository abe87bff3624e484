package fiscal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	domainfiscal "github.com/Fiscal-Harmony/odoov19/internal/domain/fiscal"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
	"github.com/Fiscal-Harmony/odoov19/pkg/zimra"
)

// skipReferencePrefix los documentos cuya referencia empieza así quedan fuera
// del alcance de fiscalización (ventas internas de tienda).
const skipReferencePrefix = "Shop/"

// Submitter orquesta el ciclo completo de envío de un documento:
//
//	lease → mapeos → sent persistido → POST → poll /status → update DB
//
// Cada intento abre una fila en submission_logs al pasar a sent y la cierra
// con el desenlace (payload, respuesta, error). El lease de envío evita que
// dos procesos (HTTP y barrido) envíen el mismo documento a la vez.
type Submitter struct {
	docRepo      repository.FiscalDocumentRepository
	configRepo   repository.FiscalConfigRepository
	taxRepo      repository.TaxMappingRepository
	currencyRepo repository.CurrencyMappingRepository
	logRepo      repository.SubmissionLogRepository
	clients      ClientFactory

	leaseStaleAfter time.Duration
	log             *logger.Logger
	now             func() time.Time
}

// NewSubmitter construye el orquestador con todas sus dependencias.
func NewSubmitter(
	docRepo repository.FiscalDocumentRepository,
	configRepo repository.FiscalConfigRepository,
	taxRepo repository.TaxMappingRepository,
	currencyRepo repository.CurrencyMappingRepository,
	logRepo repository.SubmissionLogRepository,
	clients ClientFactory,
	leaseStaleAfter time.Duration,
	log *logger.Logger,
) *Submitter {
	if leaseStaleAfter <= 0 {
		leaseStaleAfter = 5 * time.Minute
	}
	return &Submitter{
		docRepo:         docRepo,
		configRepo:      configRepo,
		taxRepo:         taxRepo,
		currencyRepo:    currencyRepo,
		logRepo:         logRepo,
		clients:         clients,
		leaseStaleAfter: leaseStaleAfter,
		log:             log,
		now:             time.Now,
	}
}

// Submit ejecuta un intento de fiscalización del documento. manual distingue
// el tope de reintentos aplicable (manual vs barrido automático).
//
// Errores relevantes para el caller:
//   - domain.ErrConflict: el estado actual no admite envío
//   - domain.ErrConfigMissing: la bodega no tiene configuración activa (el
//     documento queda en pending, listo para cuando se configure)
//   - domain.ErrRetryLimit: tope de reintentos alcanzado
//   - domain.ErrLeaseHeld: otro proceso está enviando este documento
func (s *Submitter) Submit(ctx context.Context, documentID string, manual bool) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	switch doc.FiscalStatus {
	case entity.FiscalStatusFiscalized:
		// Reenvío de un documento ya fiscalizado: no-op. El número fiscal
		// existente se conserva y no viaja nada a la autoridad.
		s.log.Document(doc.DocNumber).Info().
			Str("fiscal_number", doc.FiscalNumber).
			Msg("documento ya fiscalizado, envío omitido")
		return nil
	case entity.FiscalStatusCancelled, entity.FiscalStatusExempted:
		return fmt.Errorf("%w: documento en estado %q", domain.ErrConflict, doc.FiscalStatus)
	}
	if !doc.Finalized() {
		return &domain.ValidationError{Doc: doc.DocNumber, Reason: fmt.Sprintf("estado %q del host no permite fiscalizar", doc.State)}
	}

	// Referencias excluidas: no viajan a la autoridad, quedan exentas.
	if strings.HasPrefix(doc.Reference, skipReferencePrefix) {
		return s.exemptWith(ctx, doc, "referencia excluida de fiscalización: "+doc.Reference)
	}

	cfg, err := s.configRepo.GetActiveByWarehouse(ctx, doc.WarehouseID)
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			// Sin config el documento se queda en pending; se envía cuando exista.
			doc.ErrorText = err.Error()
			if uErr := s.docRepo.Update(ctx, doc); uErr != nil {
				s.log.Error().Err(uErr).Str("document_id", doc.ID).Msg("no se pudo anotar la falta de configuración")
			}
		}
		return err
	}

	limit := cfg.CronRetryLimit()
	if manual {
		limit = cfg.ManualRetryLimit()
	}
	if doc.RetryCount >= limit {
		return fmt.Errorf("%w: %d intentos de %q", domain.ErrRetryLimit, doc.RetryCount, doc.DocNumber)
	}

	// Otro documento ya fiscalizado con el mismo número en la misma bodega:
	// este es un duplicado del host, no debe volver a la autoridad.
	dup, err := s.docRepo.FindFiscalizedByNumber(ctx, doc.DocNumber, doc.WarehouseID, doc.ID)
	if err != nil {
		return err
	}
	if dup != nil {
		return s.exemptWith(ctx, doc, fmt.Sprintf("duplicado: %s ya fiscalizado como %s", doc.DocNumber, dup.FiscalNumber))
	}

	acquired, err := s.docRepo.AcquireLease(ctx, doc.ID, s.now().Add(-s.leaseStaleAfter))
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: documento %s", domain.ErrLeaseHeld, doc.DocNumber)
	}
	defer func() {
		if rErr := s.docRepo.ReleaseLease(ctx, doc.ID); rErr != nil {
			s.log.Error().Err(rErr).Str("document_id", doc.ID).Msg("no se pudo liberar el lease de envío")
		}
	}()

	taxByLocalID, currencyByLocal, err := s.loadMappings(ctx, cfg.ID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := transition(doc, triggerSend); err != nil {
		return err
	}
	doc.SentAt = &now

	// El sent se persiste ANTES de la llamada de red: si el proceso muere a
	// mitad del intercambio, la fila queda en sent con lease huérfano y el
	// barrido de recuperación la devuelve al ciclo de reintentos.
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return err
	}
	attempt := s.openAttempt(ctx, doc)

	payload, err := domainfiscal.Build(doc, taxByLocalID, currencyByLocal, now)
	if err != nil {
		s.finishFailure(ctx, doc, attempt, nil, err)
		return err
	}

	client := s.clients(cfg)
	result, exchange, err := client.SubmitDocument(ctx, payload.Endpoint(), payload.Body())
	if err != nil {
		s.finishFailure(ctx, doc, attempt, exchange, err)
		return err
	}

	if !result.Succeeded() {
		authErr := &domain.AuthorityError{Text: result.Error, Reference: result.RequestID}
		s.finishFailure(ctx, doc, attempt, exchange, authErr)
		return authErr
	}

	fiscalNumber, err := zimra.FiscalNumber(result.EffectiveInvoiceNumber(), result.EffectiveFiscalDay())
	if err != nil {
		// Aceptado pero sin número completo: se trata como fallo reintentable.
		s.finishFailure(ctx, doc, attempt, exchange, fmt.Errorf("respuesta incompleta de la autoridad: %w", err))
		return err
	}

	if err := transition(doc, triggerAccept); err != nil {
		return err
	}
	fiscalizedAt := s.now()
	doc.FiscalNumber = fiscalNumber
	doc.QrCodeURL = result.QrData.QrCodeURL
	doc.VerificationCode = result.QrData.VerificationCode
	doc.FiscalPdfRef = result.FiscalInvoicePdf
	doc.Response = exchange.ResponseBody
	doc.ErrorText = ""
	doc.FiscalizedAt = &fiscalizedAt

	if err := s.docRepo.Update(ctx, doc); err != nil {
		return err
	}
	s.closeAttempt(ctx, attempt, doc, exchange, nil)
	s.markConfigSuccess(ctx, cfg, fiscalizedAt)

	s.log.Document(doc.DocNumber).Info().
		Str("fiscal_number", fiscalNumber).
		Msg("documento fiscalizado")

	// Descarga del PDF oficial: mejor esfuerzo, nunca falla el envío.
	s.downloadReceiptPDF(ctx, client, doc)

	return nil
}

// Cancel marca como cancelado un documento ya fiscalizado.
func (s *Submitter) Cancel(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := transition(doc, triggerCancel); err != nil {
		return err
	}
	return s.docRepo.Update(ctx, doc)
}

// Exempt saca manualmente el documento del alcance de fiscalización.
func (s *Submitter) Exempt(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	return s.exemptWith(ctx, doc, "exento por decisión manual")
}

// Reset devuelve un documento fallido, exento o atascado en sent a pending,
// limpiando el rastro fiscal completo: número, respuesta, error, timestamps
// y contador de reintentos.
func (s *Submitter) Reset(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := transition(doc, triggerReset); err != nil {
		return err
	}
	doc.RetryCount = 0
	doc.ErrorText = ""
	doc.FiscalNumber = ""
	doc.Response = ""
	doc.SentAt = nil
	doc.FiscalizedAt = nil
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return err
	}
	if err := s.docRepo.ReleaseLease(ctx, doc.ID); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo liberar el lease en el reset")
	}
	return nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (s *Submitter) exemptWith(ctx context.Context, doc *entity.FiscalDocument, reason string) error {
	if err := transition(doc, triggerExempt); err != nil {
		return err
	}
	doc.ErrorText = reason
	s.log.Document(doc.DocNumber).Info().Str("reason", reason).Msg("documento exento")
	return s.docRepo.Update(ctx, doc)
}

func (s *Submitter) loadMappings(ctx context.Context, configID string) (map[string]entity.TaxMapping, map[string]string, error) {
	taxes, err := s.taxRepo.ListByConfig(ctx, configID)
	if err != nil {
		return nil, nil, err
	}
	taxByLocalID := make(map[string]entity.TaxMapping, len(taxes))
	for _, m := range taxes {
		if m.LocalTaxID != "" {
			taxByLocalID[m.LocalTaxID] = *m
		}
	}

	currencies, err := s.currencyRepo.ListByConfig(ctx, configID)
	if err != nil {
		return nil, nil, err
	}
	currencyByLocal := make(map[string]string, len(currencies))
	for _, m := range currencies {
		if m.Active {
			currencyByLocal[m.LocalCurrencyCode] = m.ZimraCurrencyCode
		}
	}
	return taxByLocalID, currencyByLocal, nil
}

// finishFailure transiciona a failed, cuenta el intento y deja el rastro.
func (s *Submitter) finishFailure(ctx context.Context, doc *entity.FiscalDocument, attempt *entity.SubmissionLog, exchange *harmony.Exchange, cause error) {
	if err := transition(doc, triggerReject); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("transición a failed rechazada")
		return
	}
	doc.RetryCount++
	doc.ErrorText = cause.Error()
	if exchange != nil {
		doc.Response = exchange.ResponseBody
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo persistir el fallo")
	}
	s.closeAttempt(ctx, attempt, doc, exchange, cause)

	s.log.Document(doc.DocNumber).Warn().
		Int("retry_count", doc.RetryCount).
		Err(cause).
		Msg("intento de fiscalización fallido")
}

// openAttempt abre el log del intento en estado sent; el desenlace lo cierra
// closeAttempt sobre la misma fila. Nunca falla el envío por esto.
func (s *Submitter) openAttempt(ctx context.Context, doc *entity.FiscalDocument) *entity.SubmissionLog {
	entry := &entity.SubmissionLog{
		DocumentID: doc.ID,
		DocNumber:  doc.DocNumber,
		Status:     doc.FiscalStatus,
		SentAt:     doc.SentAt,
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo abrir el log del intento de envío")
		return nil
	}
	return entry
}

// closeAttempt cierra el log del intento con su desenlace. Si el intento no
// llegó a abrirse, se crea la fila completa de una vez.
func (s *Submitter) closeAttempt(ctx context.Context, attempt *entity.SubmissionLog, doc *entity.FiscalDocument, exchange *harmony.Exchange, cause error) {
	if attempt == nil {
		attempt = &entity.SubmissionLog{DocumentID: doc.ID, DocNumber: doc.DocNumber}
	}
	attempt.Status = doc.FiscalStatus
	attempt.FiscalNumber = doc.FiscalNumber
	attempt.SentAt = doc.SentAt
	attempt.FiscalizedAt = doc.FiscalizedAt
	if exchange != nil {
		attempt.RequestData = exchange.RequestBody
		attempt.ResponseData = exchange.ResponseBody
		attempt.HTTPStatus = exchange.StatusCode
		attempt.DurationMs = exchange.Duration.Milliseconds()
	}
	if cause != nil {
		attempt.ErrorMessage = cause.Error()
	}

	var err error
	if attempt.ID == "" {
		err = s.logRepo.Create(ctx, attempt)
	} else {
		err = s.logRepo.Update(ctx, attempt)
	}
	if err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo registrar el intento de envío")
	}
}

// markConfigSuccess guarda la fecha del último envío exitoso. Mejor esfuerzo.
func (s *Submitter) markConfigSuccess(ctx context.Context, cfg *entity.FiscalConfig, at time.Time) {
	cfg.LastSuccessAt = &at
	if err := s.configRepo.Update(ctx, cfg); err != nil {
		s.log.Warn().Err(err).Str("config_id", cfg.ID).Msg("no se pudo guardar el último envío exitoso")
	}
}

// downloadReceiptPDF guarda el PDF oficial en base64. Mejor esfuerzo.
func (s *Submitter) downloadReceiptPDF(ctx context.Context, client HarmonyClient, doc *entity.FiscalDocument) {
	if doc.FiscalPdfRef == "" {
		return
	}
	data, err := client.DownloadPDF(ctx, doc.FiscalPdfRef)
	if err != nil {
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("no se pudo descargar el PDF fiscal")
		return
	}
	doc.FiscalPdfData = base64.StdEncoding.EncodeToString(data)
	if err := s.docRepo.Update(ctx, doc); err != nil {
		s.log.Warn().Err(err).Str("document", doc.DocNumber).Msg("no se pudo persistir el PDF fiscal")
	}
}

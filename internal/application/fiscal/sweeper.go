package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

// Sweeper barridos periódicos del pipeline: reintentos de documentos fallidos,
// recuperación de envíos huérfanos y limpieza de logs viejos.
type Sweeper struct {
	submitter *Submitter
	docRepo   repository.FiscalDocumentRepository
	logRepo   repository.SubmissionLogRepository

	leaseStaleAfter time.Duration
	retentionDays   int
	log             *logger.Logger
	now             func() time.Time
}

// NewSweeper construye el barrido.
func NewSweeper(
	submitter *Submitter,
	docRepo repository.FiscalDocumentRepository,
	logRepo repository.SubmissionLogRepository,
	leaseStaleAfter time.Duration,
	retentionDays int,
	log *logger.Logger,
) *Sweeper {
	if leaseStaleAfter <= 0 {
		leaseStaleAfter = 5 * time.Minute
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Sweeper{
		submitter:       submitter,
		docRepo:         docRepo,
		logRepo:         logRepo,
		leaseStaleAfter: leaseStaleAfter,
		retentionDays:   retentionDays,
		log:             log,
		now:             time.Now,
	}
}

// SweepRetries reintenta los documentos fallidos. El tope de reintentos es por
// configuración, así que lo aplica Submit; los que ya lo agotaron se saltan.
// Un fallo en un documento no corta el barrido: se acumulan y se devuelven juntos.
func (s *Sweeper) SweepRetries(ctx context.Context) error {
	docs, err := s.docRepo.ListFailedForRetry(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	s.log.Info().Int("count", len(docs)).Msg("barrido de reintentos")

	var result *multierror.Error
	for _, doc := range docs {
		if ctx.Err() != nil {
			result = multierror.Append(result, ctx.Err())
			break
		}
		err := s.submitter.Submit(ctx, doc.ID, false)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrLeaseHeld),
			errors.Is(err, domain.ErrRetryLimit),
			errors.Is(err, domain.ErrConfigMissing):
			// Esperables en el barrido; no son fallos del barrido en sí.
			s.log.Debug().Err(err).Str("document", doc.DocNumber).Msg("documento saltado en el barrido")
		default:
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RecoverStale devuelve a failed los documentos atascados en sent con un lease
// huérfano (el proceso que los envió murió sin cerrar el ciclo).
func (s *Sweeper) RecoverStale(ctx context.Context) error {
	staleBefore := s.now().Add(-s.leaseStaleAfter)
	docs, err := s.docRepo.ListStaleSent(ctx, staleBefore)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, doc := range docs {
		if err := transition(doc, triggerReject); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		doc.RetryCount++
		doc.ErrorText = "envío interrumpido: sin respuesta registrada"
		if err := s.docRepo.Update(ctx, doc); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := s.docRepo.ReleaseLease(ctx, doc.ID); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		s.log.Document(doc.DocNumber).Warn().Msg("envío huérfano recuperado a failed")
	}
	return result.ErrorOrNil()
}

// CleanupLogs borra logs de envío de documentos ya cerrados, más viejos que la
// retención configurada.
func (s *Sweeper) CleanupLogs(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.logRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("logs de envío purgados")
	}
	return nil
}

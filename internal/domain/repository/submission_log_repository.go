package repository

import (
	"context"
	"time"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// SubmissionLogRepository puerto de persistencia para el historial de envíos.
type SubmissionLogRepository interface {
	Create(ctx context.Context, log *entity.SubmissionLog) error
	Update(ctx context.Context, log *entity.SubmissionLog) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.SubmissionLog, error)
	// DeleteFinishedBefore borra logs de documentos fiscalizados o cancelados
	// creados antes del corte (retención). Devuelve cuántos borró.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

var _ repository.SubmissionLogRepository = (*SubmissionLogRepo)(nil)

// SubmissionLogRepo implementación de SubmissionLogRepository.
type SubmissionLogRepo struct {
	q Querier
}

// NewSubmissionLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSubmissionLogRepository(q Querier) *SubmissionLogRepo {
	return &SubmissionLogRepo{q: q}
}

// Create persiste un registro de intento de envío.
func (r *SubmissionLogRepo) Create(ctx context.Context, log *entity.SubmissionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO submission_logs (id, document_id, doc_number, status, request_data,
			response_data, error_message, fiscal_number, http_status, duration_ms,
			sent_at, fiscalized_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.DocumentID, log.DocNumber, log.Status, nullIfEmpty(log.RequestData),
		nullIfEmpty(log.ResponseData), nullIfEmpty(log.ErrorMessage), nullIfEmpty(log.FiscalNumber),
		log.HTTPStatus, log.DurationMs, log.SentAt, log.FiscalizedAt, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission_log: %w", err)
	}
	return nil
}

// Update actualiza el desenlace del intento.
func (r *SubmissionLogRepo) Update(ctx context.Context, log *entity.SubmissionLog) error {
	query := `
		UPDATE submission_logs
		SET status = $2, response_data = $3, error_message = $4, fiscal_number = $5,
		    http_status = $6, duration_ms = $7, sent_at = $8, fiscalized_at = $9
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.Status, nullIfEmpty(log.ResponseData), nullIfEmpty(log.ErrorMessage),
		nullIfEmpty(log.FiscalNumber), log.HTTPStatus, log.DurationMs, log.SentAt, log.FiscalizedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission_log: %w", err)
	}
	return nil
}

// ListByDocument devuelve los intentos del documento, más recientes primero.
func (r *SubmissionLogRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.SubmissionLog, error) {
	query := `
		SELECT id, document_id, doc_number, status, request_data, response_data,
		       error_message, fiscal_number, http_status, duration_ms,
		       sent_at, fiscalized_at, created_at
		FROM submission_logs WHERE document_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list submission_logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.SubmissionLog
	for rows.Next() {
		var (
			l                          entity.SubmissionLog
			requestData, responseData  *string
			errorMessage, fiscalNumber *string
		)
		if err := rows.Scan(
			&l.ID, &l.DocumentID, &l.DocNumber, &l.Status, &requestData, &responseData,
			&errorMessage, &fiscalNumber, &l.HTTPStatus, &l.DurationMs,
			&l.SentAt, &l.FiscalizedAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission_log: %w", err)
		}
		l.RequestData = derefStr(requestData)
		l.ResponseData = derefStr(responseData)
		l.ErrorMessage = derefStr(errorMessage)
		l.FiscalNumber = derefStr(fiscalNumber)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar submission_logs: %w", err)
	}
	return logs, nil
}

// DeleteFinishedBefore borra logs de documentos fiscalizados o cancelados
// anteriores al corte de retención.
func (r *SubmissionLogRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM submission_logs
		WHERE created_at < $1
		  AND document_id IN (
			SELECT id FROM fiscal_documents WHERE fiscal_status IN ($2, $3)
		  )`
	tag, err := r.q.Exec(ctx, query, cutoff, entity.FiscalStatusFiscalized, entity.FiscalStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("delete submission_logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

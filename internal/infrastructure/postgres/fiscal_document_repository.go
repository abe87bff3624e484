package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo implementación de FiscalDocumentRepository (usable con pool o tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const documentColumns = `
	id, doc_type, doc_number, reference, reversed_doc_number, warehouse_id, state, doc_date,
	partner_name, partner_tin, partner_vat, partner_phone, partner_email,
	partner_province, partner_street, partner_house_no, partner_city,
	currency_code, amount_untaxed, amount_tax, amount_total,
	fiscal_status, fiscal_number, response, error_text, sent_at, fiscalized_at,
	retry_count, qr_code_url, verification_code, fiscal_pdf_ref, fiscal_pdf_data,
	in_flight, leased_at, created_at, updated_at`

// Create persiste cabecera y líneas del documento.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.FiscalStatus == "" {
		doc.FiscalStatus = entity.FiscalStatusPending
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query := `
		INSERT INTO fiscal_documents (
			id, doc_type, doc_number, reference, reversed_doc_number, warehouse_id, state, doc_date,
			partner_name, partner_tin, partner_vat, partner_phone, partner_email,
			partner_province, partner_street, partner_house_no, partner_city,
			currency_code, amount_untaxed, amount_tax, amount_total,
			fiscal_status, retry_count, in_flight, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.DocType, doc.DocNumber, nullIfEmpty(doc.Reference), nullIfEmpty(doc.ReversedDocNumber),
		doc.WarehouseID, doc.State, doc.DocDate,
		nullIfEmpty(doc.PartnerName), nullIfEmpty(doc.PartnerTIN), nullIfEmpty(doc.PartnerVAT),
		nullIfEmpty(doc.PartnerPhone), nullIfEmpty(doc.PartnerEmail),
		nullIfEmpty(doc.PartnerProvince), nullIfEmpty(doc.PartnerStreet),
		nullIfEmpty(doc.PartnerHouseNo), nullIfEmpty(doc.PartnerCity),
		doc.CurrencyCode, doc.AmountUntaxed, doc.AmountTax, doc.AmountTotal,
		doc.FiscalStatus, doc.RetryCount, doc.InFlight, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("documento %s: %w", doc.DocNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert fiscal_document: %w", err)
	}

	for i := range doc.Lines {
		if err := r.createLine(ctx, doc.ID, &doc.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *FiscalDocumentRepo) createLine(ctx context.Context, docID string, line *entity.DocumentLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	line.DocumentID = docID
	query := `
		INSERT INTO document_lines (id, document_id, description, display_type, product_code,
			quantity, unit_price, price_subtotal, price_total, local_tax_id, tax_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.DocumentID, line.Description, nullIfEmpty(line.DisplayType),
		nullIfEmpty(line.ProductCode), line.Quantity, line.UnitPrice,
		line.PriceSubtotal, line.PriceTotal, nullIfEmpty(line.LocalTaxID), nullIfEmpty(line.TaxName),
	)
	if err != nil {
		return fmt.Errorf("insert document_line: %w", err)
	}
	return nil
}

// Update persiste el rastro fiscal completo y el estado del host.
func (r *FiscalDocumentRepo) Update(ctx context.Context, doc *entity.FiscalDocument) error {
	doc.UpdatedAt = time.Now()
	query := `
		UPDATE fiscal_documents
		SET state             = $2,
		    fiscal_status     = $3,
		    fiscal_number     = $4,
		    response          = $5,
		    error_text        = $6,
		    sent_at           = $7,
		    fiscalized_at     = $8,
		    retry_count       = $9,
		    qr_code_url       = $10,
		    verification_code = $11,
		    fiscal_pdf_ref    = $12,
		    fiscal_pdf_data   = $13,
		    updated_at        = $14
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, doc.State, doc.FiscalStatus,
		nullIfEmpty(doc.FiscalNumber), nullIfEmpty(doc.Response), nullIfEmpty(doc.ErrorText),
		doc.SentAt, doc.FiscalizedAt, doc.RetryCount,
		nullIfEmpty(doc.QrCodeURL), nullIfEmpty(doc.VerificationCode),
		nullIfEmpty(doc.FiscalPdfRef), nullIfEmpty(doc.FiscalPdfData),
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fiscal_document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene un documento completo con sus líneas.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1`
	doc, err := r.scanDocument(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal_document: %w", err)
	}

	lines, err := r.linesByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

// FindFiscalizedByNumber busca otro documento fiscalizado con el mismo número
// en la misma bodega. nil si no hay duplicado.
func (r *FiscalDocumentRepo) FindFiscalizedByNumber(ctx context.Context, docNumber, warehouseID, excludeID string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE doc_number = $1 AND warehouse_id = $2 AND fiscal_status = $3 AND id <> $4
		LIMIT 1`
	doc, err := r.scanDocument(r.q.QueryRow(ctx, query, docNumber, warehouseID, entity.FiscalStatusFiscalized, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find fiscalized by number: %w", err)
	}
	return doc, nil
}

// AcquireLease toma el lease de envío con update-if-unset. Un lease más viejo
// que staleBefore se considera huérfano y se re-adquiere.
func (r *FiscalDocumentRepo) AcquireLease(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE fiscal_documents
		SET in_flight = TRUE, leased_at = now()
		WHERE id = $1 AND (in_flight = FALSE OR leased_at IS NULL OR leased_at < $2)`
	tag, err := r.q.Exec(ctx, query, id, staleBefore)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLease libera el lease de envío.
func (r *FiscalDocumentRepo) ReleaseLease(ctx context.Context, id string) error {
	query := `UPDATE fiscal_documents SET in_flight = FALSE, leased_at = NULL WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// ListFailedForRetry documentos en failed y finalizados en el host. El tope de
// reintentos depende de la configuración de cada bodega, así que no se filtra aquí.
func (r *FiscalDocumentRepo) ListFailedForRetry(ctx context.Context) ([]*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE fiscal_status = $1 AND state IN ($2, $3, $4)
		ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, entity.FiscalStatusFailed,
		entity.DocStatePosted, entity.DocStatePaid, entity.DocStateDone)
	if err != nil {
		return nil, fmt.Errorf("list failed for retry: %w", err)
	}
	defer rows.Close()
	return r.collectDocuments(rows)
}

// ListStaleSent documentos atascados en sent con lease huérfano.
func (r *FiscalDocumentRepo) ListStaleSent(ctx context.Context, staleBefore time.Time) ([]*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE fiscal_status = $1 AND in_flight = TRUE AND leased_at < $2
		ORDER BY leased_at`
	rows, err := r.q.Query(ctx, query, entity.FiscalStatusSent, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("list stale sent: %w", err)
	}
	defer rows.Close()
	return r.collectDocuments(rows)
}

func (r *FiscalDocumentRepo) collectDocuments(rows pgx.Rows) ([]*entity.FiscalDocument, error) {
	var docs []*entity.FiscalDocument
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal_document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar fiscal_documents: %w", err)
	}
	return docs, nil
}

func (r *FiscalDocumentRepo) scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var (
		doc entity.FiscalDocument

		reference, reversed                          *string
		partnerName, partnerTIN, partnerVAT          *string
		partnerPhone, partnerEmail                   *string
		province, street, houseNo, city              *string
		fiscalNumber, response, errorText            *string
		qrCodeURL, verificationCode, pdfRef, pdfData *string
	)
	err := row.Scan(
		&doc.ID, &doc.DocType, &doc.DocNumber, &reference, &reversed,
		&doc.WarehouseID, &doc.State, &doc.DocDate,
		&partnerName, &partnerTIN, &partnerVAT, &partnerPhone, &partnerEmail,
		&province, &street, &houseNo, &city,
		&doc.CurrencyCode, &doc.AmountUntaxed, &doc.AmountTax, &doc.AmountTotal,
		&doc.FiscalStatus, &fiscalNumber, &response, &errorText,
		&doc.SentAt, &doc.FiscalizedAt, &doc.RetryCount,
		&qrCodeURL, &verificationCode, &pdfRef, &pdfData,
		&doc.InFlight, &doc.LeasedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Reference = derefStr(reference)
	doc.ReversedDocNumber = derefStr(reversed)
	doc.PartnerName = derefStr(partnerName)
	doc.PartnerTIN = derefStr(partnerTIN)
	doc.PartnerVAT = derefStr(partnerVAT)
	doc.PartnerPhone = derefStr(partnerPhone)
	doc.PartnerEmail = derefStr(partnerEmail)
	doc.PartnerProvince = derefStr(province)
	doc.PartnerStreet = derefStr(street)
	doc.PartnerHouseNo = derefStr(houseNo)
	doc.PartnerCity = derefStr(city)
	doc.FiscalNumber = derefStr(fiscalNumber)
	doc.Response = derefStr(response)
	doc.ErrorText = derefStr(errorText)
	doc.QrCodeURL = derefStr(qrCodeURL)
	doc.VerificationCode = derefStr(verificationCode)
	doc.FiscalPdfRef = derefStr(pdfRef)
	doc.FiscalPdfData = derefStr(pdfData)
	return &doc, nil
}

func (r *FiscalDocumentRepo) linesByDocument(ctx context.Context, docID string) ([]entity.DocumentLine, error) {
	query := `
		SELECT id, document_id, description, display_type, product_code,
		       quantity, unit_price, price_subtotal, price_total, local_tax_id, tax_name
		FROM document_lines WHERE document_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("list document_lines: %w", err)
	}
	defer rows.Close()

	var lines []entity.DocumentLine
	for rows.Next() {
		var (
			line                     entity.DocumentLine
			displayType, productCode *string
			localTaxID, taxName      *string
		)
		if err := rows.Scan(
			&line.ID, &line.DocumentID, &line.Description, &displayType, &productCode,
			&line.Quantity, &line.UnitPrice, &line.PriceSubtotal, &line.PriceTotal,
			&localTaxID, &taxName,
		); err != nil {
			return nil, fmt.Errorf("scan document_line: %w", err)
		}
		line.DisplayType = derefStr(displayType)
		line.ProductCode = derefStr(productCode)
		line.LocalTaxID = derefStr(localTaxID)
		line.TaxName = derefStr(taxName)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar document_lines: %w", err)
	}
	return lines, nil
}

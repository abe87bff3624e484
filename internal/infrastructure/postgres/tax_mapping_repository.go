package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

var _ repository.TaxMappingRepository = (*TaxMappingRepo)(nil)

// TaxMappingRepo implementación de TaxMappingRepository.
// Unicidad por (config_id, local_tax_id) vía índice único.
type TaxMappingRepo struct {
	q Querier
}

// NewTaxMappingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTaxMappingRepository(q Querier) *TaxMappingRepo {
	return &TaxMappingRepo{q: q}
}

// Create persiste un mapeo. Duplicado (config, impuesto local) → ErrDuplicate.
func (r *TaxMappingRepo) Create(ctx context.Context, m *entity.TaxMapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO tax_mappings (id, config_id, local_tax_id, local_tax_name,
			tax_code, tax_name, tax_rate, tax_type, description, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.ConfigID, nullIfEmpty(m.LocalTaxID), nullIfEmpty(m.LocalTaxName),
		m.TaxCode, m.TaxName, m.TaxRate, m.TaxType, nullIfEmpty(m.Description),
		m.Active, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("impuesto %s ya mapeado en la configuración: %w", m.LocalTaxID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert tax_mapping: %w", err)
	}
	return nil
}

// ListByConfig devuelve los mapeos activos de la configuración.
func (r *TaxMappingRepo) ListByConfig(ctx context.Context, configID string) ([]*entity.TaxMapping, error) {
	query := `
		SELECT id, config_id, local_tax_id, local_tax_name, tax_code, tax_name,
		       tax_rate, tax_type, description, active, created_at, updated_at
		FROM tax_mappings WHERE config_id = $1 AND active ORDER BY tax_code`
	rows, err := r.q.Query(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("list tax_mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*entity.TaxMapping
	for rows.Next() {
		var (
			m                        entity.TaxMapping
			localTaxID, localTaxName *string
			description              *string
		)
		if err := rows.Scan(
			&m.ID, &m.ConfigID, &localTaxID, &localTaxName, &m.TaxCode, &m.TaxName,
			&m.TaxRate, &m.TaxType, &description, &m.Active, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tax_mapping: %w", err)
		}
		m.LocalTaxID = derefStr(localTaxID)
		m.LocalTaxName = derefStr(localTaxName)
		m.Description = derefStr(description)
		mappings = append(mappings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar tax_mappings: %w", err)
	}
	return mappings, nil
}

// DeleteByConfig borra todos los mapeos de la configuración (replace del sync).
func (r *TaxMappingRepo) DeleteByConfig(ctx context.Context, configID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM tax_mappings WHERE config_id = $1`, configID); err != nil {
		return fmt.Errorf("delete tax_mappings: %w", err)
	}
	return nil
}

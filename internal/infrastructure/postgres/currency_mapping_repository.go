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

var _ repository.CurrencyMappingRepository = (*CurrencyMappingRepo)(nil)

// CurrencyMappingRepo implementación de CurrencyMappingRepository.
// Unicidad por (config_id, local_currency_code) vía índice único.
type CurrencyMappingRepo struct {
	q Querier
}

// NewCurrencyMappingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCurrencyMappingRepository(q Querier) *CurrencyMappingRepo {
	return &CurrencyMappingRepo{q: q}
}

// Create persiste un mapeo. Duplicado (config, moneda local) → ErrDuplicate.
func (r *CurrencyMappingRepo) Create(ctx context.Context, m *entity.CurrencyMapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO currency_mappings (id, config_id, local_currency_code, zimra_currency_code,
			active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.ConfigID, m.LocalCurrencyCode, m.ZimraCurrencyCode,
		m.Active, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("moneda %s ya mapeada en la configuración: %w", m.LocalCurrencyCode, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert currency_mapping: %w", err)
	}
	return nil
}

// ListByConfig devuelve los mapeos activos de la configuración.
func (r *CurrencyMappingRepo) ListByConfig(ctx context.Context, configID string) ([]*entity.CurrencyMapping, error) {
	query := `
		SELECT id, config_id, local_currency_code, zimra_currency_code, active, created_at, updated_at
		FROM currency_mappings WHERE config_id = $1 AND active ORDER BY local_currency_code`
	rows, err := r.q.Query(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("list currency_mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*entity.CurrencyMapping
	for rows.Next() {
		var m entity.CurrencyMapping
		if err := rows.Scan(
			&m.ID, &m.ConfigID, &m.LocalCurrencyCode, &m.ZimraCurrencyCode,
			&m.Active, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan currency_mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar currency_mappings: %w", err)
	}
	return mappings, nil
}

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

var _ repository.FiscalConfigRepository = (*FiscalConfigRepo)(nil)

// FiscalConfigRepo implementación de FiscalConfigRepository.
// La unicidad "una config activa por bodega" la garantiza un índice parcial:
// CREATE UNIQUE INDEX ... ON fiscal_configs (warehouse_id) WHERE active.
type FiscalConfigRepo struct {
	q Querier
}

// NewFiscalConfigRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalConfigRepository(q Querier) *FiscalConfigRepo {
	return &FiscalConfigRepo{q: q}
}

const configColumns = `
	id, name, warehouse_id, api_url, api_key, api_secret, harmony_user_id,
	active, auto_fiscalize, auto_sync_taxes, max_manual_retries, max_cron_retries,
	timeout_secs, last_success_at, taxes_synced_at, created_at, updated_at`

// Create persiste la configuración. Violación del índice de config activa → ErrConflict.
func (r *FiscalConfigRepo) Create(ctx context.Context, cfg *entity.FiscalConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.MaxManualRetries == 0 {
		cfg.MaxManualRetries = entity.DefaultMaxManualRetries
	}
	if cfg.MaxCronRetries == 0 {
		cfg.MaxCronRetries = entity.DefaultMaxCronRetries
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = entity.DefaultTimeoutSecs
	}
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	query := `
		INSERT INTO fiscal_configs (id, name, warehouse_id, api_url, api_key, api_secret,
			harmony_user_id, active, auto_fiscalize, auto_sync_taxes,
			max_manual_retries, max_cron_retries, timeout_secs, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := r.q.Exec(ctx, query,
		cfg.ID, cfg.Name, cfg.WarehouseID, cfg.APIURL, cfg.APIKey, cfg.APISecret,
		nullIfEmpty(cfg.HarmonyUserID), cfg.Active, cfg.AutoFiscalize, cfg.AutoSyncTaxes,
		cfg.MaxManualRetries, cfg.MaxCronRetries, cfg.TimeoutSecs, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bodega %s ya tiene configuración activa: %w", cfg.WarehouseID, domain.ErrConflict)
		}
		return fmt.Errorf("insert fiscal_config: %w", err)
	}
	return nil
}

// Update actualiza la configuración completa.
func (r *FiscalConfigRepo) Update(ctx context.Context, cfg *entity.FiscalConfig) error {
	cfg.UpdatedAt = time.Now()
	query := `
		UPDATE fiscal_configs
		SET name = $2, api_url = $3, api_key = $4, api_secret = $5,
		    harmony_user_id = $6, active = $7, auto_fiscalize = $8, auto_sync_taxes = $9,
		    max_manual_retries = $10, max_cron_retries = $11, timeout_secs = $12,
		    last_success_at = $13, taxes_synced_at = $14, updated_at = $15
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		cfg.ID, cfg.Name, cfg.APIURL, cfg.APIKey, cfg.APISecret,
		nullIfEmpty(cfg.HarmonyUserID), cfg.Active, cfg.AutoFiscalize, cfg.AutoSyncTaxes,
		cfg.MaxManualRetries, cfg.MaxCronRetries, cfg.TimeoutSecs,
		cfg.LastSuccessAt, cfg.TaxesSyncedAt, cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bodega %s ya tiene configuración activa: %w", cfg.WarehouseID, domain.ErrConflict)
		}
		return fmt.Errorf("update fiscal_config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene una configuración por ID.
func (r *FiscalConfigRepo) GetByID(ctx context.Context, id string) (*entity.FiscalConfig, error) {
	query := `SELECT ` + configColumns + ` FROM fiscal_configs WHERE id = $1`
	cfg, err := r.scanConfig(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal_config: %w", err)
	}
	return cfg, nil
}

// GetActiveByWarehouse devuelve la config activa de la bodega, o ErrConfigMissing.
func (r *FiscalConfigRepo) GetActiveByWarehouse(ctx context.Context, warehouseID string) (*entity.FiscalConfig, error) {
	query := `SELECT ` + configColumns + ` FROM fiscal_configs WHERE warehouse_id = $1 AND active LIMIT 1`
	cfg, err := r.scanConfig(r.q.QueryRow(ctx, query, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bodega %s: %w", warehouseID, domain.ErrConfigMissing)
		}
		return nil, fmt.Errorf("get active fiscal_config: %w", err)
	}
	return cfg, nil
}

// List devuelve todas las configuraciones.
func (r *FiscalConfigRepo) List(ctx context.Context) ([]*entity.FiscalConfig, error) {
	query := `SELECT ` + configColumns + ` FROM fiscal_configs ORDER BY created_at`
	return r.collect(ctx, query)
}

// ListAutoSync configuraciones activas con sync periódico de impuestos.
func (r *FiscalConfigRepo) ListAutoSync(ctx context.Context) ([]*entity.FiscalConfig, error) {
	query := `SELECT ` + configColumns + ` FROM fiscal_configs WHERE active AND auto_sync_taxes ORDER BY created_at`
	return r.collect(ctx, query)
}

func (r *FiscalConfigRepo) collect(ctx context.Context, query string, args ...any) ([]*entity.FiscalConfig, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_configs: %w", err)
	}
	defer rows.Close()

	var cfgs []*entity.FiscalConfig
	for rows.Next() {
		cfg, err := r.scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal_config: %w", err)
		}
		cfgs = append(cfgs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar fiscal_configs: %w", err)
	}
	return cfgs, nil
}

func (r *FiscalConfigRepo) scanConfig(row pgx.Row) (*entity.FiscalConfig, error) {
	var (
		cfg           entity.FiscalConfig
		harmonyUserID *string
	)
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.WarehouseID, &cfg.APIURL, &cfg.APIKey, &cfg.APISecret,
		&harmonyUserID, &cfg.Active, &cfg.AutoFiscalize, &cfg.AutoSyncTaxes,
		&cfg.MaxManualRetries, &cfg.MaxCronRetries, &cfg.TimeoutSecs,
		&cfg.LastSuccessAt, &cfg.TaxesSyncedAt, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.HarmonyUserID = derefStr(harmonyUserID)
	return &cfg, nil
}

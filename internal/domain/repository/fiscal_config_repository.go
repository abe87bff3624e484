package repository

import (
	"context"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// FiscalConfigRepository puerto de persistencia para configuraciones fiscales.
type FiscalConfigRepository interface {
	Create(ctx context.Context, cfg *entity.FiscalConfig) error
	GetByID(ctx context.Context, id string) (*entity.FiscalConfig, error)
	// GetActiveByWarehouse devuelve la configuración activa de la bodega (a lo sumo una).
	GetActiveByWarehouse(ctx context.Context, warehouseID string) (*entity.FiscalConfig, error)
	List(ctx context.Context) ([]*entity.FiscalConfig, error)
	// ListAutoSync configuraciones activas con sincronización periódica de impuestos.
	ListAutoSync(ctx context.Context) ([]*entity.FiscalConfig, error)
	Update(ctx context.Context, cfg *entity.FiscalConfig) error
}

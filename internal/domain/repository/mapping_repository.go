package repository

import (
	"context"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// TaxMappingRepository puerto de persistencia para mapeos de impuestos.
type TaxMappingRepository interface {
	Create(ctx context.Context, m *entity.TaxMapping) error
	ListByConfig(ctx context.Context, configID string) ([]*entity.TaxMapping, error)
	// DeleteByConfig borra todos los mapeos de la configuración (paso previo del
	// replace del device sync; debe correr en la misma transacción que los Create).
	DeleteByConfig(ctx context.Context, configID string) error
}

// CurrencyMappingRepository puerto de persistencia para mapeos de moneda.
type CurrencyMappingRepository interface {
	Create(ctx context.Context, m *entity.CurrencyMapping) error
	ListByConfig(ctx context.Context, configID string) ([]*entity.CurrencyMapping, error)
}

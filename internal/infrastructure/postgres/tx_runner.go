package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunTaxSync inicia una transacción con el repo de mapeos de impuestos atado a
// ella. Usado por el sync de impuestos del dispositivo: el borrado y la
// recreación de mapeos deben ser atómicos.
func (r *TxRunner) RunTaxSync(ctx context.Context, fn func(taxRepo repository.TaxMappingRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewTaxMappingRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunIngest inicia una transacción con el repo de documentos atado a ella.
// Usado por el ingest: cabecera y líneas se insertan atómicamente.
func (r *TxRunner) RunIngest(ctx context.Context, fn func(docRepo repository.FiscalDocumentRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewFiscalDocumentRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

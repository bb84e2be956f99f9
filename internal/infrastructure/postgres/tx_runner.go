package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appnfse "github.com/jhoicas/nfse-abrasf/internal/application/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
)

var _ appnfse.EmissaoTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunEmissoes inicia una transacción, ejecuta fn con el historial atado a la tx
// y hace Commit o Rollback.
func (r *TxRunner) RunEmissoes(ctx context.Context, fn func(emissoes repository.EmissaoRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewEmissaoRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

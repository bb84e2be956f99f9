package repository

import (
	"context"
	"time"

	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
)

// EmissaoRepository historial de NFSes emitidas por tenant.
// GetByNumero devuelve (nil, nil) si no existe.
type EmissaoRepository interface {
	Save(ctx context.Context, e *entity.Emissao) error
	GetByNumero(ctx context.Context, companyID string, numero int64) (*entity.Emissao, error)
	MarkCancelada(ctx context.Context, companyID string, numero int64, at time.Time) error
}

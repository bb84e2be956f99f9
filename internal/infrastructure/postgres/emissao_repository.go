package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
)

var _ repository.EmissaoRepository = (*EmissaoRepo)(nil)

// EmissaoRepo historial de NFSes sobre nfse_emissoes.
type EmissaoRepo struct {
	q Querier
}

// NewEmissaoRepository construye el adaptador. Acepta pool o tx.
func NewEmissaoRepository(q Querier) *EmissaoRepo {
	return &EmissaoRepo{q: q}
}

// Save inserta la emisión; una NFSe ya registrada (empresa, número) se actualiza.
func (r *EmissaoRepo) Save(ctx context.Context, e *entity.Emissao) error {
	const query = `
		INSERT INTO nfse_emissoes (id, empresa_id, operacao, numero, codigo_verificacao, data_emissao,
			valor_servicos, xml_nfse, cancelada, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		ON CONFLICT (empresa_id, numero) DO UPDATE SET
			codigo_verificacao = EXCLUDED.codigo_verificacao,
			data_emissao       = EXCLUDED.data_emissao,
			xml_nfse           = EXCLUDED.xml_nfse`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.CompanyID, e.Operacao, e.Numero, e.CodigoVerificacao, e.DataEmissao,
		e.ValorServicos, e.XmlNfse, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert emissao: %w", err)
	}
	return nil
}

// GetByNumero obtiene la emisión de la empresa por número de NFSe.
func (r *EmissaoRepo) GetByNumero(ctx context.Context, companyID string, numero int64) (*entity.Emissao, error) {
	const query = `
		SELECT id, empresa_id, operacao, numero, codigo_verificacao, data_emissao, valor_servicos,
			xml_nfse, cancelada, data_cancelamento, created_at
		FROM nfse_emissoes WHERE empresa_id = $1 AND numero = $2`
	var e entity.Emissao
	err := r.q.QueryRow(ctx, query, companyID, numero).Scan(
		&e.ID, &e.CompanyID, &e.Operacao, &e.Numero, &e.CodigoVerificacao, &e.DataEmissao, &e.ValorServicos,
		&e.XmlNfse, &e.Cancelada, &e.DataCancelamento, &e.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get emissao: %w", err)
	}
	return &e, nil
}

// MarkCancelada marca la NFSe como cancelada. Una NFSe no registrada localmente se ignora.
func (r *EmissaoRepo) MarkCancelada(ctx context.Context, companyID string, numero int64, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE nfse_emissoes SET cancelada = TRUE, data_cancelamento = $3 WHERE empresa_id = $1 AND numero = $2`,
		companyID, numero, at,
	)
	if err != nil {
		return fmt.Errorf("cancelar emissao: %w", err)
	}
	return nil
}

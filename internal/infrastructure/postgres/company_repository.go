package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
// Nunca lee las columnas del certificado (PFX y senha): eso es del CertificateStore.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para empresas. Acepta pool o tx.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

const companyColumns = `
	id, cnpj, razao_social, nome_fantasia, inscricao_municipal, codigo_municipio,
	cep, logradouro, numero, complemento, bairro, uf, tipo_ambiente, api_key, ativa,
	certificado_pfx IS NOT NULL, certificado_validade, certificado_titular, certificado_emissor,
	created_at, updated_at`

// Create persiste una nueva empresa. CNPJ o API key repetidos devuelven domain.ErrDuplicate.
func (r *CompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	const query = `
		INSERT INTO empresas (id, cnpj, razao_social, nome_fantasia, inscricao_municipal, codigo_municipio,
			cep, logradouro, numero, complemento, bairro, uf, tipo_ambiente, api_key, ativa, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.CNPJ, c.RazaoSocial, c.NomeFantasia, c.InscricaoMunicipal, c.CodigoMunicipio,
		c.CEP, c.Logradouro, c.Numero, c.Complemento, c.Bairro, c.UF, c.TipoAmbiente, c.APIKey, c.Ativa,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: empresa com CNPJ %s", domain.ErrDuplicate, c.CNPJ)
		}
		return fmt.Errorf("insert empresa: %w", err)
	}
	return nil
}

// GetByID obtiene una empresa por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByCNPJ obtiene una empresa por CNPJ sin máscara.
func (r *CompanyRepo) GetByCNPJ(ctx context.Context, cnpj string) (*entity.Company, error) {
	return r.getOne(ctx, "cnpj = $1", cnpj)
}

// GetByAPIKey obtiene la empresa dueña de la API key.
func (r *CompanyRepo) GetByAPIKey(ctx context.Context, apiKey string) (*entity.Company, error) {
	return r.getOne(ctx, "api_key = $1", apiKey)
}

func (r *CompanyRepo) getOne(ctx context.Context, where string, arg any) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM empresas WHERE ` + where
	c, err := scanCompany(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get empresa: %w", err)
	}
	return c, nil
}

// Update actualiza datos cadastrales, ambiente, API key y estado.
func (r *CompanyRepo) Update(ctx context.Context, c *entity.Company) error {
	const query = `
		UPDATE empresas SET razao_social = $2, nome_fantasia = $3, inscricao_municipal = $4,
			codigo_municipio = $5, cep = $6, logradouro = $7, numero = $8, complemento = $9,
			bairro = $10, uf = $11, tipo_ambiente = $12, api_key = $13, ativa = $14, updated_at = $15
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		c.ID, c.RazaoSocial, c.NomeFantasia, c.InscricaoMunicipal,
		c.CodigoMunicipio, c.CEP, c.Logradouro, c.Numero, c.Complemento,
		c.Bairro, c.UF, c.TipoAmbiente, c.APIKey, c.Ativa, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: api key", domain.ErrDuplicate)
		}
		return fmt.Errorf("update empresa: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List devuelve empresas con paginación y el total de registros.
func (r *CompanyRepo) List(ctx context.Context, limit, offset int) ([]*entity.Company, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM empresas`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count empresas: %w", err)
	}

	query := `SELECT ` + companyColumns + ` FROM empresas ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list empresas: %w", err)
	}
	defer rows.Close()

	list := make([]*entity.Company, 0, limit)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan empresa: %w", err)
		}
		list = append(list, c)
	}
	return list, total, rows.Err()
}

// Delete elimina una empresa por ID.
func (r *CompanyRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM empresas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete empresa: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCompany(row pgxScanner) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(
		&c.ID, &c.CNPJ, &c.RazaoSocial, &c.NomeFantasia, &c.InscricaoMunicipal, &c.CodigoMunicipio,
		&c.CEP, &c.Logradouro, &c.Numero, &c.Complemento, &c.Bairro, &c.UF, &c.TipoAmbiente, &c.APIKey, &c.Ativa,
		&c.HasCertificado, &c.CertificadoValidade, &c.CertificadoTitular, &c.CertificadoEmissor,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

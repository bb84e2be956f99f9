package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema idempotente; se aplica al arrancar el servicio.
const schema = `
CREATE TABLE IF NOT EXISTS empresas (
	id                    UUID PRIMARY KEY,
	cnpj                  VARCHAR(14)  NOT NULL UNIQUE,
	razao_social          VARCHAR(255) NOT NULL,
	nome_fantasia         VARCHAR(255) NOT NULL DEFAULT '',
	inscricao_municipal   VARCHAR(20)  NOT NULL DEFAULT '',
	codigo_municipio      VARCHAR(7)   NOT NULL DEFAULT '',
	cep                   VARCHAR(10)  NOT NULL DEFAULT '',
	logradouro            VARCHAR(150) NOT NULL DEFAULT '',
	numero                VARCHAR(20)  NOT NULL DEFAULT '',
	complemento           VARCHAR(100) NOT NULL DEFAULT '',
	bairro                VARCHAR(100) NOT NULL DEFAULT '',
	uf                    VARCHAR(2)   NOT NULL DEFAULT '',
	tipo_ambiente         VARCHAR(1)   NOT NULL DEFAULT '2',
	api_key               VARCHAR(100) NOT NULL UNIQUE,
	ativa                 BOOLEAN      NOT NULL DEFAULT TRUE,
	certificado_pfx       BYTEA,
	certificado_senha     TEXT,
	certificado_validade  TIMESTAMPTZ,
	certificado_titular   VARCHAR(255) NOT NULL DEFAULT '',
	certificado_emissor   VARCHAR(255) NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ  NOT NULL,
	updated_at            TIMESTAMPTZ  NOT NULL
);

CREATE TABLE IF NOT EXISTS nfse_emissoes (
	id                  UUID PRIMARY KEY,
	empresa_id          UUID          NOT NULL REFERENCES empresas(id) ON DELETE CASCADE,
	operacao            VARCHAR(40)   NOT NULL,
	numero              BIGINT        NOT NULL,
	codigo_verificacao  VARCHAR(64)   NOT NULL DEFAULT '',
	data_emissao        TIMESTAMPTZ,
	valor_servicos      NUMERIC(15,2) NOT NULL DEFAULT 0,
	xml_nfse            TEXT          NOT NULL DEFAULT '',
	cancelada           BOOLEAN       NOT NULL DEFAULT FALSE,
	data_cancelamento   TIMESTAMPTZ,
	created_at          TIMESTAMPTZ   NOT NULL,
	UNIQUE (empresa_id, numero)
);
`

// Migrate crea las tablas si no existen.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("aplicar schema: %w", err)
	}
	return nil
}

// Package nfsetest ofrece solicitudes de ejemplo para los tests del pipeline NFSe.
package nfsetest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
)

// Company empresa de Santos en homologação con certificado vigente.
func Company() *entity.Company {
	validade := time.Now().AddDate(1, 0, 0)
	return &entity.Company{
		ID:                  "00000000-0000-0000-0000-000000000001",
		CNPJ:                "12.345.678/0001-00",
		RazaoSocial:         "Empresa Teste Ltda",
		InscricaoMunicipal:  "123456",
		CodigoMunicipio:     "3548500",
		TipoAmbiente:        "2",
		APIKey:              "test-api-key",
		Ativa:               true,
		HasCertificado:      true,
		CertificadoValidade: &validade,
		CertificadoTitular:  "EMPRESA TESTE LTDA:12345678000100",
	}
}

// Rps RPS mínimo válido: item 101, valor 1500.00, sin campos opcionales.
func Rps(numero int64) nfse.Rps {
	return nfse.Rps{
		InfDeclaracaoPrestacaoServico: nfse.InfRps{
			Identificacao:          nfse.IdentificacaoRps{Numero: numero, Serie: "A", Tipo: 1},
			DataEmissao:            nfse.NewData(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
			OptanteSimplesNacional: 2,
			IncentivadorCultural:   2,
			Servico: nfse.DadosServico{
				Valores: nfse.ValoresServico{
					ValorServicos: decimal.RequireFromString("1500.00"),
				},
				ItemListaServico: "101",
				CodigoNbs:        "115013000",
				Discriminacao:    "Desenvolvimento de software",
				CodigoMunicipio:  "3548500",
			},
		},
	}
}

// Dec atajo para *decimal.Decimal en los tests.
func Dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Int atajo para *int.
func Int(i int) *int { return &i }

package nfse_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
)

const compNfseCompleta = `<CompNfse xmlns="http://www.abrasf.org.br/nfse.xsd"><Nfse versao="2.04"><InfNfse Id="nfse77">` +
	`<Numero>77</Numero><CodigoVerificacao>AB12-CD34</CodigoVerificacao><DataEmissao>2025-03-10T14:30:00</DataEmissao>` +
	`<ValoresNfse><BaseCalculo>1490.00</BaseCalculo><Aliquota>2.00</Aliquota><ValorIss>29.80</ValorIss><ValorLiquidoNfse>1500.00</ValorLiquidoNfse></ValoresNfse>` +
	`<PrestadorServico><IdentificacaoPrestador><CpfCnpj><Cnpj>12345678000100</Cnpj></CpfCnpj><InscricaoMunicipal>998877</InscricaoMunicipal></IdentificacaoPrestador>` +
	`<RazaoSocial>EMPRESA TESTE LTDA</RazaoSocial><Endereco><Endereco>Rua A</Endereco><Numero>10</Numero><Bairro>Centro</Bairro><Uf>SP</Uf></Endereco></PrestadorServico>` +
	`<OrgaoGerador><CodigoMunicipio>3548500</CodigoMunicipio><Uf>SP</Uf></OrgaoGerador>` +
	`<DeclaracaoPrestacaoServico><InfDeclaracaoPrestacaoServico Id="rpsA1"><Competencia>2025-03-10</Competencia>` +
	`<Servico><Valores><ValorServicos>1500.00</ValorServicos><ValorDeducoes>10.00</ValorDeducoes></Valores><IssRetido>2</IssRetido>` +
	`<ItemListaServico>101</ItemListaServico><Discriminacao>Consultoria</Discriminacao></Servico>` +
	`<TomadorServico><IdentificacaoTomador><CpfCnpj><Cpf>12345678909</Cpf></CpfCnpj></IdentificacaoTomador><RazaoSocial>Fulano</RazaoSocial>` +
	`<Contato><Email>fulano@example.com</Email></Contato></TomadorServico>` +
	`</InfDeclaracaoPrestacaoServico></DeclaracaoPrestacaoServico></InfNfse></Nfse></CompNfse>`

func TestParseDanfse(t *testing.T) {
	d, err := nfse.NewResponseParser().ParseDanfse([]byte(compNfseCompleta))
	require.NoError(t, err)

	assert.Equal(t, int64(77), d.Numero)
	assert.Equal(t, "AB12-CD34", d.CodigoVerificacao)
	assert.Equal(t, "2025-03-10", d.Competencia)
	assert.Equal(t, "3548500", d.CodigoMunicipio)
	assert.Equal(t, "EMPRESA TESTE LTDA", d.Prestador.RazaoSocial)
	assert.Equal(t, "12.345.678/0001-00", d.Prestador.CpfCnpj)
	assert.Equal(t, "998877", d.Prestador.InscricaoMunicipal)
	assert.Equal(t, "Rua A, 10, Centro, SP", d.Prestador.Endereco)
	assert.Equal(t, "12345678909", d.Tomador.CpfCnpj)
	assert.Equal(t, "fulano@example.com", d.Tomador.Email)
	assert.True(t, d.ValorServicos.Equal(decimal.RequireFromString("1500")))
	assert.True(t, d.BaseCalculo.Equal(decimal.RequireFromString("1490")))
	assert.True(t, d.ValorIss.Equal(decimal.RequireFromString("29.8")))
	assert.False(t, d.IssRetido)
	assert.False(t, d.Cancelada)
	assert.Equal(t, "NFSE|77|AB12-CD34|12.345.678/0001-00", d.QRData())
}

func TestParseDanfse_SemInfNfse(t *testing.T) {
	_, err := nfse.NewResponseParser().ParseDanfse([]byte(`<CompNfse/>`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

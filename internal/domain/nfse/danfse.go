package nfse

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Danfse datos de la representación gráfica de una NFSe, extraídos de la CompNfse.
type Danfse struct {
	Numero            int64
	CodigoVerificacao string
	DataEmissao       *time.Time
	Competencia       string
	CodigoMunicipio   string

	Prestador ParteDanfse
	Tomador   ParteDanfse

	ItemListaServico          string
	CodigoTributacaoMunicipio string
	Discriminacao             string

	ValorServicos    decimal.Decimal
	ValorDeducoes    decimal.Decimal
	BaseCalculo      decimal.Decimal
	Aliquota         decimal.Decimal
	ValorIss         decimal.Decimal
	ValorLiquidoNfse decimal.Decimal
	IssRetido        bool

	OutrasInformacoes string
	Cancelada         bool
}

// ParteDanfse prestador o tomador tal como aparece en la nota.
type ParteDanfse struct {
	RazaoSocial        string
	CpfCnpj            string
	InscricaoMunicipal string
	Endereco           string
	Email              string
}

// QRData contenido del código QR: número, código de verificación y CNPJ del prestador.
func (d Danfse) QRData() string {
	return fmt.Sprintf("NFSE|%d|%s|%s", d.Numero, d.CodigoVerificacao, d.Prestador.CpfCnpj)
}

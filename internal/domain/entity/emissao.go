package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Emissao registro local de una NFSe emitida por la prefeitura para un tenant.
// Guarda el XML de la CompNfse para reimpresión del DANFSe.
type Emissao struct {
	ID                string
	CompanyID         string
	Operacao          string
	Numero            int64
	CodigoVerificacao string
	DataEmissao       *time.Time
	ValorServicos     decimal.Decimal
	XmlNfse           string
	Cancelada         bool
	DataCancelamento  *time.Time
	CreatedAt         time.Time
}

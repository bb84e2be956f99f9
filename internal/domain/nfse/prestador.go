package nfse

import (
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

// Prestador identificadores fiscales del tenant que el ensamblador embebe en cada documento.
type Prestador struct {
	Cnpj               string // sin máscara
	InscricaoMunicipal string
	CodigoMunicipio    string
}

// PrestadorFromCompany extrae los identificadores fiscales de la empresa.
func PrestadorFromCompany(c *entity.Company) Prestador {
	return Prestador{
		Cnpj:               abrasf.NormalizeDocumento(c.CNPJ),
		InscricaoMunicipal: c.InscricaoMunicipal,
		CodigoMunicipio:    c.CodigoMunicipio,
	}
}

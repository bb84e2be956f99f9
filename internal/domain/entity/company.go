package entity

import "time"

// Company representa una empresa prestadora de servicios (tenant) que emite NFSe.
// El certificado digital (PFX + senha) no viaja en esta entidad: lo entrega el
// CertificateStore solo durante la llamada que lo necesita.
type Company struct {
	ID                 string
	CNPJ               string // sin máscara
	RazaoSocial        string
	NomeFantasia       string
	InscricaoMunicipal string
	CodigoMunicipio    string // código IBGE de 7 dígitos
	CEP                string
	Logradouro         string
	Numero             string
	Complemento        string
	Bairro             string
	UF                 string
	TipoAmbiente       string // "1" = Produção, "2" = Homologação
	APIKey             string
	Ativa              bool

	// Metadatos del certificado (el archivo vive en el CertificateStore).
	HasCertificado      bool
	CertificadoValidade *time.Time
	CertificadoTitular  string
	CertificadoEmissor  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsProducao indica si la empresa opera en el ambiente de producción.
// Cualquier valor distinto de "1" se trata como homologação.
func (c *Company) IsProducao() bool {
	return c.TipoAmbiente == "1"
}

// CertificadoExpirado indica si la validez registrada del certificado es anterior a now.
func (c *Company) CertificadoExpirado(now time.Time) bool {
	return c.CertificadoValidade != nil && c.CertificadoValidade.Before(now)
}

// CertificateInfo datos extraídos de un PFX al cargarlo.
type CertificateInfo struct {
	Validade time.Time
	Titular  string
	Emissor  string
	Serial   string
}

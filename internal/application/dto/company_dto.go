package dto

import "time"

// CreateCompanyRequest entrada para dar de alta una empresa prestadora.
type CreateCompanyRequest struct {
	CNPJ               string `json:"cnpj" validate:"required"`
	RazaoSocial        string `json:"razao_social" validate:"required,min=1,max=150"`
	NomeFantasia       string `json:"nome_fantasia"`
	InscricaoMunicipal string `json:"inscricao_municipal" validate:"required"`
	CodigoMunicipio    string `json:"codigo_municipio" validate:"required,len=7"`
	CEP                string `json:"cep"`
	Logradouro         string `json:"logradouro"`
	Numero             string `json:"numero"`
	Complemento        string `json:"complemento"`
	Bairro             string `json:"bairro"`
	UF                 string `json:"uf" validate:"omitempty,len=2"`
	TipoAmbiente       string `json:"tipo_ambiente" validate:"omitempty,oneof=1 2"`
}

// UpdateCompanyRequest entrada para actualizar una empresa (campos opcionales).
type UpdateCompanyRequest struct {
	RazaoSocial        *string `json:"razao_social" validate:"omitempty,min=1,max=150"`
	NomeFantasia       *string `json:"nome_fantasia"`
	InscricaoMunicipal *string `json:"inscricao_municipal"`
	CodigoMunicipio    *string `json:"codigo_municipio" validate:"omitempty,len=7"`
	CEP                *string `json:"cep"`
	Logradouro         *string `json:"logradouro"`
	Numero             *string `json:"numero"`
	Complemento        *string `json:"complemento"`
	Bairro             *string `json:"bairro"`
	UF                 *string `json:"uf" validate:"omitempty,len=2"`
	TipoAmbiente       *string `json:"tipo_ambiente" validate:"omitempty,oneof=1 2"`
}

// UploadCertificateRequest PFX en base64 y su senha.
type UploadCertificateRequest struct {
	CertificadoBase64 string `json:"certificado_base64" validate:"required"`
	Senha             string `json:"senha"`
}

// CompanyResponse salida de una empresa. La API key solo viaja en el alta y en la rotación.
type CompanyResponse struct {
	ID                  string     `json:"id"`
	CNPJ                string     `json:"cnpj"`
	RazaoSocial         string     `json:"razao_social"`
	NomeFantasia        string     `json:"nome_fantasia,omitempty"`
	InscricaoMunicipal  string     `json:"inscricao_municipal"`
	CodigoMunicipio     string     `json:"codigo_municipio"`
	CEP                 string     `json:"cep,omitempty"`
	Logradouro          string     `json:"logradouro,omitempty"`
	Numero              string     `json:"numero,omitempty"`
	Complemento         string     `json:"complemento,omitempty"`
	Bairro              string     `json:"bairro,omitempty"`
	UF                  string     `json:"uf,omitempty"`
	TipoAmbiente        string     `json:"tipo_ambiente"`
	Ativa               bool       `json:"ativa"`
	APIKey              string     `json:"api_key,omitempty"`
	HasCertificado      bool       `json:"has_certificado"`
	CertificadoValidade *time.Time `json:"certificado_validade,omitempty"`
	CertificadoTitular  string     `json:"certificado_titular,omitempty"`
	CertificadoEmissor  string     `json:"certificado_emissor,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CompanyListResponse lista paginada de empresas.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// CertificateResponse metadatos del certificado recién cargado.
type CertificateResponse struct {
	Validade time.Time `json:"validade"`
	Titular  string    `json:"titular"`
	Emissor  string    `json:"emissor"`
	Serial   string    `json:"serial"`
	Vencido  bool      `json:"vencido"`
}

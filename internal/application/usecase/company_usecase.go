package usecase

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

const (
	apiKeyBytes         = 32
	ambienteHomologacao = "2"
)

// CompanyUseCase aplica reglas de negocio para empresas prestadoras (tenants).
type CompanyUseCase struct {
	repo     repository.CompanyRepository
	certs    repository.CertificateStore
	loadCert func(pfx []byte, senha string) (tls.Certificate, error)
	now      func() time.Time
}

// NewCompanyUseCase construye el caso de uso con los puertos de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository, certs repository.CertificateStore) *CompanyUseCase {
	return &CompanyUseCase{
		repo:     repo,
		certs:    certs,
		loadCert: signer.LoadFromPFX,
		now:      time.Now,
	}
}

// Create da de alta una empresa. Valida el CNPJ, genera ID y API key y la deja
// activa en homologação salvo que se indique otro ambiente.
// Devuelve domain.ErrDuplicate si el CNPJ ya existe.
func (uc *CompanyUseCase) Create(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	if err := abrasf.ValidateCNPJ(in.CNPJ); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	cnpj := abrasf.NormalizeDocumento(in.CNPJ)
	if strings.TrimSpace(in.RazaoSocial) == "" || strings.TrimSpace(in.InscricaoMunicipal) == "" {
		return nil, fmt.Errorf("%w: razao_social e inscricao_municipal são obrigatórios", domain.ErrValidation)
	}
	if err := validateMunicipio(in.CodigoMunicipio); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByCNPJ(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	ambiente := in.TipoAmbiente
	if ambiente == "" {
		ambiente = ambienteHomologacao
	}
	now := uc.now().UTC()
	company := &entity.Company{
		ID:                 uuid.New().String(),
		CNPJ:               cnpj,
		RazaoSocial:        strings.TrimSpace(in.RazaoSocial),
		NomeFantasia:       in.NomeFantasia,
		InscricaoMunicipal: strings.TrimSpace(in.InscricaoMunicipal),
		CodigoMunicipio:    in.CodigoMunicipio,
		CEP:                abrasf.NormalizeDocumento(in.CEP),
		Logradouro:         in.Logradouro,
		Numero:             in.Numero,
		Complemento:        in.Complemento,
		Bairro:             in.Bairro,
		UF:                 strings.ToUpper(in.UF),
		TipoAmbiente:       ambiente,
		APIKey:             apiKey,
		Ativa:              true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.repo.Create(ctx, company); err != nil {
		return nil, err
	}
	out := entityToCompanyResponse(company)
	out.APIKey = apiKey
	return out, nil
}

// GetByID obtiene una empresa por ID. Devuelve (nil, nil) si no existe.
func (uc *CompanyUseCase) GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, nil
	}
	return entityToCompanyResponse(company), nil
}

// GetByAPIKey resuelve el tenant de una API key. Devuelve (nil, nil) si no existe.
func (uc *CompanyUseCase) GetByAPIKey(ctx context.Context, apiKey string) (*entity.Company, error) {
	if apiKey == "" {
		return nil, nil
	}
	return uc.repo.GetByAPIKey(ctx, apiKey)
}

// List lista empresas con paginación.
func (uc *CompanyUseCase) List(ctx context.Context, page dto.PageRequest) (*dto.CompanyListResponse, error) {
	page.DefaultPage()
	list, total, err := uc.repo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CompanyResponse, 0, len(list))
	for _, c := range list {
		items = append(items, *entityToCompanyResponse(c))
	}
	return &dto.CompanyListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}, nil
}

// Update aplica los campos informados. El CNPJ no se modifica.
func (uc *CompanyUseCase) Update(ctx context.Context, id string, in dto.UpdateCompanyRequest) (*dto.CompanyResponse, error) {
	company, err := uc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CodigoMunicipio != nil {
		if err := validateMunicipio(*in.CodigoMunicipio); err != nil {
			return nil, err
		}
		company.CodigoMunicipio = *in.CodigoMunicipio
	}
	if in.TipoAmbiente != nil {
		if *in.TipoAmbiente != "1" && *in.TipoAmbiente != "2" {
			return nil, fmt.Errorf("%w: tipo_ambiente deve ser 1 (produção) ou 2 (homologação)", domain.ErrValidation)
		}
		company.TipoAmbiente = *in.TipoAmbiente
	}
	if in.RazaoSocial != nil {
		if strings.TrimSpace(*in.RazaoSocial) == "" {
			return nil, fmt.Errorf("%w: razao_social não pode ser vazia", domain.ErrValidation)
		}
		company.RazaoSocial = strings.TrimSpace(*in.RazaoSocial)
	}
	setIf(&company.NomeFantasia, in.NomeFantasia)
	setIf(&company.InscricaoMunicipal, in.InscricaoMunicipal)
	setIf(&company.Logradouro, in.Logradouro)
	setIf(&company.Numero, in.Numero)
	setIf(&company.Complemento, in.Complemento)
	setIf(&company.Bairro, in.Bairro)
	if in.CEP != nil {
		company.CEP = abrasf.NormalizeDocumento(*in.CEP)
	}
	if in.UF != nil {
		company.UF = strings.ToUpper(*in.UF)
	}
	return uc.save(ctx, company)
}

// SetAtiva activa o desactiva la empresa. Una empresa inactiva no emite.
func (uc *CompanyUseCase) SetAtiva(ctx context.Context, id string, ativa bool) (*dto.CompanyResponse, error) {
	company, err := uc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	company.Ativa = ativa
	return uc.save(ctx, company)
}

// RotateAPIKey genera una API key nueva; la anterior deja de valer.
func (uc *CompanyUseCase) RotateAPIKey(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	company, err := uc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	company.APIKey = apiKey
	out, err := uc.save(ctx, company)
	if err != nil {
		return nil, err
	}
	out.APIKey = apiKey
	return out, nil
}

// UploadCertificate abre el PFX con la senha informada, lo guarda y registra
// validez, titular y emisor. Un archivo o senha inválidos devuelven
// domain.ErrCertificateDecode; un certificado ya vencido se rechaza.
func (uc *CompanyUseCase) UploadCertificate(ctx context.Context, id string, in dto.UploadCertificateRequest) (*dto.CertificateResponse, error) {
	company, err := uc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	pfx, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.CertificadoBase64))
	if err != nil || len(pfx) == 0 {
		return nil, fmt.Errorf("%w: certificado_base64 inválido", domain.ErrValidation)
	}
	cert, err := uc.loadCert(pfx, in.Senha)
	if err != nil {
		return nil, err
	}
	info, err := signer.Info(cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCertificateDecode, err)
	}
	now := uc.now()
	if info.Validade.Before(now) {
		return nil, fmt.Errorf("%w: vencido em %s", domain.ErrCertificateExpired, info.Validade.Format("02/01/2006"))
	}
	if err := uc.certs.SaveCertificate(ctx, company.ID, pfx, in.Senha, info); err != nil {
		return nil, err
	}
	return &dto.CertificateResponse{
		Validade: info.Validade,
		Titular:  info.Titular,
		Emissor:  info.Emissor,
		Serial:   info.Serial,
	}, nil
}

func (uc *CompanyUseCase) mustGet(ctx context.Context, id string) (*entity.Company, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return company, nil
}

func (uc *CompanyUseCase) save(ctx context.Context, company *entity.Company) (*dto.CompanyResponse, error) {
	company.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, company); err != nil {
		return nil, err
	}
	return entityToCompanyResponse(company), nil
}

func validateMunicipio(codigo string) error {
	if len(codigo) != 7 || strings.IndexFunc(codigo, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return fmt.Errorf("%w: codigo_municipio deve ter 7 dígitos (IBGE)", domain.ErrValidation)
	}
	return nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// generateAPIKey 32 bytes aleatorios en hexadecimal (64 caracteres).
func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generar api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func entityToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	if c == nil {
		return nil
	}
	return &dto.CompanyResponse{
		ID:                  c.ID,
		CNPJ:                c.CNPJ,
		RazaoSocial:         c.RazaoSocial,
		NomeFantasia:        c.NomeFantasia,
		InscricaoMunicipal:  c.InscricaoMunicipal,
		CodigoMunicipio:     c.CodigoMunicipio,
		CEP:                 c.CEP,
		Logradouro:          c.Logradouro,
		Numero:              c.Numero,
		Complemento:         c.Complemento,
		Bairro:              c.Bairro,
		UF:                  c.UF,
		TipoAmbiente:        c.TipoAmbiente,
		Ativa:               c.Ativa,
		HasCertificado:      c.HasCertificado,
		CertificadoValidade: c.CertificadoValidade,
		CertificadoTitular:  c.CertificadoTitular,
		CertificadoEmissor:  c.CertificadoEmissor,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

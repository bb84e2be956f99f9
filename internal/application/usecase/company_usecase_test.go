package usecase

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/nfse/nfsetest"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria
// ──────────────────────────────────────────────────────────────────────────────

type memCompanies struct {
	byID map[string]*entity.Company
}

func newMemCompanies() *memCompanies {
	return &memCompanies{byID: map[string]*entity.Company{}}
}

func (m *memCompanies) Create(_ context.Context, c *entity.Company) error {
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memCompanies) GetByCNPJ(_ context.Context, cnpj string) (*entity.Company, error) {
	for _, c := range m.byID {
		if c.CNPJ == cnpj {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCompanies) GetByAPIKey(_ context.Context, key string) (*entity.Company, error) {
	for _, c := range m.byID {
		if c.APIKey == key {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCompanies) Update(_ context.Context, c *entity.Company) error {
	if _, ok := m.byID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCompanies) List(_ context.Context, limit, offset int) ([]*entity.Company, int, error) {
	out := make([]*entity.Company, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	total := len(out)
	if offset >= total {
		return []*entity.Company{}, total, nil
	}
	end := min(offset+limit, total)
	return out[offset:end], total, nil
}

func (m *memCompanies) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type memCerts struct {
	companyID string
	pfx       []byte
	senha     string
	info      entity.CertificateInfo
}

func (m *memCerts) GetCertificate(_ context.Context, companyID string) ([]byte, string, error) {
	if m.companyID != companyID {
		return nil, "", domain.ErrNotFound
	}
	return m.pfx, m.senha, nil
}

func (m *memCerts) SaveCertificate(_ context.Context, companyID string, pfx []byte, senha string, info entity.CertificateInfo) error {
	m.companyID, m.pfx, m.senha, m.info = companyID, pfx, senha, info
	return nil
}

const cnpjValido = "11.222.333/0001-81"

func newCompanyUseCase(t *testing.T) (*CompanyUseCase, *memCompanies, *memCerts) {
	t.Helper()
	repo, certs := newMemCompanies(), &memCerts{}
	return NewCompanyUseCase(repo, certs), repo, certs
}

func createCompany(t *testing.T, uc *CompanyUseCase) *dto.CompanyResponse {
	t.Helper()
	out, err := uc.Create(context.Background(), dto.CreateCompanyRequest{
		CNPJ:               cnpjValido,
		RazaoSocial:        "Serviços Santos Ltda",
		InscricaoMunicipal: "123456",
		CodigoMunicipio:    "3548500",
		UF:                 "sp",
	})
	require.NoError(t, err, "el alta con datos válidos no debe fallar")
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta
// ──────────────────────────────────────────────────────────────────────────────

func TestCompanyCreate_Defaults(t *testing.T) {
	uc, repo, _ := newCompanyUseCase(t)
	out := createCompany(t, uc)

	assert.Equal(t, "11222333000181", out.CNPJ, "el CNPJ se guarda sin máscara")
	assert.Equal(t, "2", out.TipoAmbiente, "homologação por defecto")
	assert.True(t, out.Ativa)
	assert.Equal(t, "SP", out.UF)
	assert.Len(t, out.APIKey, 64, "32 bytes en hexadecimal")
	assert.Regexp(t, "^[0-9a-f]+$", out.APIKey)
	assert.NotEmpty(t, out.ID)

	stored := repo.byID[out.ID]
	require.NotNil(t, stored)
	assert.Equal(t, out.APIKey, stored.APIKey)
}

func TestCompanyCreate_Duplicado(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	createCompany(t, uc)

	_, err := uc.Create(context.Background(), dto.CreateCompanyRequest{
		CNPJ:               "11222333000181",
		RazaoSocial:        "Outra",
		InscricaoMunicipal: "9",
		CodigoMunicipio:    "3548500",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestCompanyCreate_Validacao(t *testing.T) {
	base := dto.CreateCompanyRequest{
		CNPJ:               cnpjValido,
		RazaoSocial:        "Empresa",
		InscricaoMunicipal: "1",
		CodigoMunicipio:    "3548500",
	}
	tests := []struct {
		name   string
		mutate func(*dto.CreateCompanyRequest)
	}{
		{"cnpj con dígito inválido", func(r *dto.CreateCompanyRequest) { r.CNPJ = "11.222.333/0001-82" }},
		{"cnpj repetido", func(r *dto.CreateCompanyRequest) { r.CNPJ = "11111111111111" }},
		{"sin razão social", func(r *dto.CreateCompanyRequest) { r.RazaoSocial = " " }},
		{"municipio corto", func(r *dto.CreateCompanyRequest) { r.CodigoMunicipio = "35485" }},
		{"municipio no numérico", func(r *dto.CreateCompanyRequest) { r.CodigoMunicipio = "35485AB" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, repo, _ := newCompanyUseCase(t)
			in := base
			tt.mutate(&in)
			_, err := uc.Create(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, repo.byID, "no se persiste nada")
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Consulta, edición, estado y API key
// ──────────────────────────────────────────────────────────────────────────────

func TestCompanyGetByID(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	created := createCompany(t, uc)

	out, err := uc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Empty(t, out.APIKey, "la API key no se expone en la consulta")

	out, err = uc.GetByID(context.Background(), "inexistente")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCompanyUpdate(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	created := createCompany(t, uc)

	producao, razao := "1", "Nova Razão"
	out, err := uc.Update(context.Background(), created.ID, dto.UpdateCompanyRequest{
		TipoAmbiente: &producao,
		RazaoSocial:  &razao,
	})
	require.NoError(t, err)
	assert.Equal(t, "1", out.TipoAmbiente)
	assert.Equal(t, "Nova Razão", out.RazaoSocial)
	assert.Equal(t, "123456", out.InscricaoMunicipal, "los campos omitidos no cambian")

	invalido := "3"
	_, err = uc.Update(context.Background(), created.ID, dto.UpdateCompanyRequest{TipoAmbiente: &invalido})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.Update(context.Background(), "inexistente", dto.UpdateCompanyRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompanySetAtiva(t *testing.T) {
	uc, repo, _ := newCompanyUseCase(t)
	created := createCompany(t, uc)

	out, err := uc.SetAtiva(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.False(t, out.Ativa)
	assert.False(t, repo.byID[created.ID].Ativa)
}

func TestCompanyRotateAPIKey(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	created := createCompany(t, uc)

	out, err := uc.RotateAPIKey(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, out.APIKey, 64)
	assert.NotEqual(t, created.APIKey, out.APIKey)

	old, err := uc.GetByAPIKey(context.Background(), created.APIKey)
	require.NoError(t, err)
	assert.Nil(t, old, "la key anterior deja de valer")

	current, err := uc.GetByAPIKey(context.Background(), out.APIKey)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, created.ID, current.ID)
}

func TestCompanyList(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	createCompany(t, uc)

	out, err := uc.List(context.Background(), dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, 20, out.Page.Limit, "límite por defecto")
	assert.Equal(t, 1, out.Page.Total)
}

// ──────────────────────────────────────────────────────────────────────────────
// Certificado digital
// ──────────────────────────────────────────────────────────────────────────────

func TestCompanyUploadCertificate(t *testing.T) {
	uc, _, certs := newCompanyUseCase(t)
	created := createCompany(t, uc)
	validade := time.Now().AddDate(1, 0, 0)
	cert := nfsetest.Certificate(t, validade)
	uc.loadCert = func(pfx []byte, senha string) (tls.Certificate, error) {
		if senha != "1234" {
			return tls.Certificate{}, domain.ErrCertificateDecode
		}
		return cert, nil
	}
	pfx := base64.StdEncoding.EncodeToString([]byte("pfx-bytes"))

	out, err := uc.UploadCertificate(context.Background(), created.ID, dto.UploadCertificateRequest{CertificadoBase64: pfx, Senha: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "EMPRESA TESTE LTDA:12345678000100", out.Titular)
	assert.Equal(t, "1092", out.Serial, "serial 4242 en hexadecimal")
	assert.WithinDuration(t, validade, out.Validade, time.Second)

	assert.Equal(t, created.ID, certs.companyID)
	assert.Equal(t, []byte("pfx-bytes"), certs.pfx)
	assert.Equal(t, "1234", certs.senha)

	_, err = uc.UploadCertificate(context.Background(), created.ID, dto.UploadCertificateRequest{CertificadoBase64: pfx, Senha: "errada"})
	assert.ErrorIs(t, err, domain.ErrCertificateDecode)
}

func TestCompanyUploadCertificate_Rechazos(t *testing.T) {
	uc, _, certs := newCompanyUseCase(t)
	created := createCompany(t, uc)
	vencido := nfsetest.Certificate(t, time.Now().Add(-time.Hour))
	uc.loadCert = func([]byte, string) (tls.Certificate, error) { return vencido, nil }

	_, err := uc.UploadCertificate(context.Background(), created.ID, dto.UploadCertificateRequest{CertificadoBase64: "%%%"})
	assert.ErrorIs(t, err, domain.ErrValidation, "base64 inválido")

	_, err = uc.UploadCertificate(context.Background(), created.ID, dto.UploadCertificateRequest{
		CertificadoBase64: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	assert.ErrorIs(t, err, domain.ErrCertificateExpired)
	assert.Empty(t, certs.companyID, "un certificado vencido no se guarda")

	_, err = uc.UploadCertificate(context.Background(), "inexistente", dto.UploadCertificateRequest{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

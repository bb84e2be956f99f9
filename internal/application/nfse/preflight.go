package nfse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
)

// Códigos de mensaje generados por el servicio (no por la prefeitura).
const (
	CodigoEmpresaNaoEncontrada  = "EMPRESA_NAO_ENCONTRADA"
	CodigoEmpresaInativa        = "EMPRESA_INATIVA"
	CodigoMunicipioNaoInformado = "MUNICIPIO_NAO_CONFIGURADO"
	CodigoMunicipioNaoSuportado = "MUNICIPIO_NAO_SUPORTADO"
	CodigoCertificadoAusente    = "CERTIFICADO_AUSENTE"
	CodigoCertificadoVencido    = "CERTIFICADO_VENCIDO"
	CodigoCertificadoInvalido   = "CERTIFICADO_INVALIDO"
	CodigoValidacao             = "VALIDACAO"
	CodigoAssinatura            = "ERRO_ASSINATURA"
	CodigoComunicacao           = "ERRO_COMUNICACAO"
	CodigoRetornoInvalido       = "RETORNO_INVALIDO"
	CodigoErroInterno           = "ERRO_INTERNO"
)

const (
	mensagemErroInterno           = "Erro interno ao processar a requisição."
	formatoDataCertificadoVencido = "02/01/2006"
)

// PreflightError la operación no llegó a la prefeitura porque el tenant no está apto.
// Unwrap devuelve el sentinel de dominio (ErrNotFound, ErrCompanyInactive, ...).
type PreflightError struct {
	Codigo   string
	Mensagem string
	Err      error
}

func (e *PreflightError) Error() string { return e.Mensagem }

func (e *PreflightError) Unwrap() error { return e.Err }

// tenantContext lo que cada operación necesita del tenant ya validado.
type tenantContext struct {
	company   *entity.Company
	provider  provider.Provider
	desc      provider.Descriptor
	prestador dom.Prestador
}

// prepare valida el tenant en orden: existe, activo, municipio, certificado
// presente y vigente. Recién después resuelve el proveedor.
func (s *Service) prepare(ctx context.Context, companyID string) (*tenantContext, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("nfse: obtener empresa %s: %w", companyID, err)
	}
	if company == nil {
		return nil, &PreflightError{CodigoEmpresaNaoEncontrada, fmt.Sprintf("Empresa %s não encontrada.", companyID), domain.ErrNotFound}
	}
	if !company.Ativa {
		return nil, &PreflightError{CodigoEmpresaInativa, domain.ErrCompanyInactive.Error(), domain.ErrCompanyInactive}
	}
	if strings.TrimSpace(company.CodigoMunicipio) == "" {
		return nil, &PreflightError{CodigoMunicipioNaoInformado, domain.ErrMunicipioNotSet.Error(), domain.ErrMunicipioNotSet}
	}
	if !company.HasCertificado {
		return nil, &PreflightError{CodigoCertificadoAusente, domain.ErrCertificateMissing.Error(), domain.ErrCertificateMissing}
	}
	if company.CertificadoExpirado(s.now()) {
		msg := fmt.Sprintf("Certificado digital vencido em %s.", company.CertificadoValidade.Format(formatoDataCertificadoVencido))
		return nil, &PreflightError{CodigoCertificadoVencido, msg, domain.ErrCertificateExpired}
	}

	p, err := s.providers.Resolve(company.CodigoMunicipio)
	if err != nil {
		return nil, &PreflightError{CodigoMunicipioNaoSuportado, err.Error(), err}
	}
	return &tenantContext{
		company:   company,
		provider:  p,
		desc:      p.Descriptor(),
		prestador: dom.PrestadorFromCompany(company),
	}, nil
}

// certificate abre el PFX del tenant para esta llamada. El archivo leído se
// sobrescribe antes de volver; el tls.Certificate no se guarda en el servicio.
func (s *Service) certificate(ctx context.Context, companyID string) (tls.Certificate, error) {
	pfx, senha, err := s.certs.GetCertificate(ctx, companyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return tls.Certificate{}, domain.ErrCertificateMissing
		}
		return tls.Certificate{}, err
	}
	defer clear(pfx)
	return s.loadCert(pfx, senha)
}

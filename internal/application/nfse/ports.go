package nfse

import (
	"context"
	"crypto/tls"

	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
)

// ProviderResolver catálogo de municipios. Lo implementa *provider.Registry.
type ProviderResolver interface {
	Resolve(codigoMunicipio string) (provider.Provider, error)
	ListAvailable() []provider.Municipio
}

// Transport envío SOAP con TLS mutuo. Lo implementa *infranfse.SOAPClient.
type Transport interface {
	Send(ctx context.Context, url, soapAction string, envelope []byte, cert tls.Certificate) (*infranfse.SOAPResponse, error)
}

// CertificateLoader abre el PKCS#12 de la empresa (signer.LoadFromPFX en producción).
type CertificateLoader func(pfx []byte, senha string) (tls.Certificate, error)

// DanfseRenderer genera el PDF del DANFSe.
type DanfseRenderer interface {
	Generate(ctx context.Context, d *dom.Danfse) ([]byte, error)
}

// EmissaoTxRunner ejecuta fn dentro de una transacción con el historial atado a ella.
type EmissaoTxRunner interface {
	RunEmissoes(ctx context.Context, fn func(emissoes repository.EmissaoRepository) error) error
}

package nfse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
)

// DanfseUseCase genera el DANFSe (PDF) de una NFSe.
type DanfseUseCase struct {
	parser   *infranfse.ResponseParser
	renderer DanfseRenderer
	emissoes repository.EmissaoRepository
}

// NewDanfseUseCase crea el caso de uso. emissoes nil deshabilita FromNumero.
func NewDanfseUseCase(renderer DanfseRenderer, emissoes repository.EmissaoRepository) *DanfseUseCase {
	return &DanfseUseCase{
		parser:   infranfse.NewResponseParser(),
		renderer: renderer,
		emissoes: emissoes,
	}
}

// FromXML genera el PDF a partir de la CompNfse (o Nfse) enviada por el integrador.
func (uc *DanfseUseCase) FromXML(ctx context.Context, xmlNfse string) ([]byte, error) {
	if strings.TrimSpace(xmlNfse) == "" {
		return nil, fmt.Errorf("%w: xml_nfse obrigatório", domain.ErrValidation)
	}
	d, err := uc.parser.ParseDanfse([]byte(xmlNfse))
	if err != nil {
		return nil, err
	}
	return uc.renderer.Generate(ctx, d)
}

// FromNumero genera el PDF de una NFSe del historial del tenant. Una NFSe
// cancelada localmente sale con la marca CANCELADA.
func (uc *DanfseUseCase) FromNumero(ctx context.Context, companyID string, numero int64) ([]byte, error) {
	if uc.emissoes == nil {
		return nil, fmt.Errorf("danfse: historial de emissões não configurado")
	}
	e, err := uc.emissoes.GetByNumero(ctx, companyID, numero)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNotFound
	}
	d, err := uc.parser.ParseDanfse([]byte(e.XmlNfse))
	if err != nil {
		return nil, err
	}
	d.Cancelada = d.Cancelada || e.Cancelada
	return uc.renderer.Generate(ctx, d)
}

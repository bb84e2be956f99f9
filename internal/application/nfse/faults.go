package nfse

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
)

// faultOf traduce un error del pipeline a la mensagem visible para el integrador.
// internal=true indica un error no clasificado: el detalle solo va al log.
func faultOf(err error) (codigo, mensagem string, internal bool) {
	var pre *PreflightError
	var te *infranfse.TransportError
	switch {
	case errors.As(err, &pre):
		return pre.Codigo, pre.Mensagem, false
	case errors.As(err, &te):
		return CodigoComunicacao, fmt.Sprintf("Erro na comunicação com o WebService: HTTP %d", te.StatusCode), false
	case errors.Is(err, domain.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return CodigoComunicacao, err.Error(), false
	case errors.Is(err, domain.ErrValidation):
		return CodigoValidacao, err.Error(), false
	case errors.Is(err, domain.ErrCertificateMissing):
		return CodigoCertificadoAusente, domain.ErrCertificateMissing.Error(), false
	case errors.Is(err, domain.ErrCertificateDecode):
		return CodigoCertificadoInvalido, domain.ErrCertificateDecode.Error(), false
	case errors.Is(err, domain.ErrNoSignableElements):
		return CodigoAssinatura, err.Error(), false
	case errors.Is(err, domain.ErrInvalidReply):
		return CodigoRetornoInvalido, err.Error(), false
	}
	return CodigoErroInterno, mensagemErroInterno, true
}

// fail registra err en base y lo loguea con el nivel que corresponde a su tipo.
func fail(base *dom.BaseResponse, err error, log zerolog.Logger) {
	codigo, mensagem, internal := faultOf(err)
	base.Fail(codigo, mensagem)
	if internal {
		log.Error().Err(err).Msg("[NFSe] erro interno")
		return
	}
	log.Warn().Err(err).Str("codigo", codigo).Msg("[NFSe] operação não concluída")
}

// Package nfse orquesta el pipeline ABRASF para los integradores:
//
//	pre-flight → XML ABRASF → firma → envelope SOAP → mTLS → normalización
//
// Cada llamada es independiente: el certificado del tenant se abre por llamada
// y no se retiene en el servicio.
package nfse

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
)

// Service orquestador de las nueve operaciones NFSe.
//
// Todas las operaciones devuelven siempre su respuesta canónica. El error solo
// es distinto de nil cuando el tenant no pasó el pre-flight (*PreflightError);
// en ese caso la respuesta ya trae la mensagem correspondiente.
type Service struct {
	companies repository.CompanyRepository
	certs     repository.CertificateStore
	emissoes  repository.EmissaoRepository // opcional
	tx        EmissaoTxRunner               // opcional
	providers ProviderResolver
	signer    abrasf.Signer
	transport Transport
	parser    *infranfse.ResponseParser
	loadCert  CertificateLoader
	now       func() time.Time
	log       *logger.Logger
}

// NewService construye el orquestador. emissoes puede ser nil: en ese caso no
// se guarda el historial de NFSes emitidas.
func NewService(
	companies repository.CompanyRepository,
	certs repository.CertificateStore,
	emissoes repository.EmissaoRepository,
	providers ProviderResolver,
	sig abrasf.Signer,
	transport Transport,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		companies: companies,
		certs:     certs,
		emissoes:  emissoes,
		providers: providers,
		signer:    sig,
		transport: transport,
		parser:    infranfse.NewResponseParser(),
		loadCert:  signer.LoadFromPFX,
		now:       time.Now,
		log:       log.Component("nfse"),
	}
}

// WithTxRunner hace atómico el registro de la sustitución (cancelada + sustituta).
func (s *Service) WithTxRunner(tx EmissaoTxRunner) *Service {
	s.tx = tx
	return s
}

// ListMunicipios catálogo de municipios atendidos.
func (s *Service) ListMunicipios() []provider.Municipio {
	return s.providers.ListAvailable()
}

// ── Operaciones ────────────────────────────────────────────────────────────

// GerarNfse emite una NFSe a partir de un único RPS (síncrono).
func (s *Service) GerarNfse(ctx context.Context, companyID string, req dom.GerarNfseRequest) (*dom.GerarNfseResponse, error) {
	resp, err := run(ctx, s, companyID, pipeline[*dom.GerarNfseResponse]{
		op:    dom.OpGerarNfse,
		empty: func() *dom.GerarNfseResponse { return &dom.GerarNfseResponse{} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) { return b.BuildGerarNfse(req, p) },
		parse: s.parser.ParseGerarNfse,
	})
	if resp.Sucesso && resp.Nfse != nil {
		s.record(ctx, companyID, dom.OpGerarNfse, *resp.Nfse)
	}
	return resp, err
}

// EnviarLoteRps envía un lote asíncrono; la prefeitura devuelve un protocolo.
func (s *Service) EnviarLoteRps(ctx context.Context, companyID string, req dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsResponse, error) {
	return run(ctx, s, companyID, pipeline[*dom.EnviarLoteRpsResponse]{
		op:    dom.OpRecepcionarLoteRps,
		empty: func() *dom.EnviarLoteRpsResponse { return &dom.EnviarLoteRpsResponse{NumeroLote: req.NumeroLote} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildEnviarLoteRps(req, p, false)
		},
		parse: func(raw []byte) (*dom.EnviarLoteRpsResponse, error) {
			r, err := s.parser.ParseEnviarLoteRps(raw)
			if r != nil && r.NumeroLote == "" {
				r.NumeroLote = req.NumeroLote
			}
			return r, err
		},
	})
}

// EnviarLoteRpsSincrono envía un lote y recibe las NFSes generadas en la misma llamada.
func (s *Service) EnviarLoteRpsSincrono(ctx context.Context, companyID string, req dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsSincronoResponse, error) {
	resp, err := run(ctx, s, companyID, pipeline[*dom.EnviarLoteRpsSincronoResponse]{
		op: dom.OpRecepcionarLoteRpsSincrono,
		empty: func() *dom.EnviarLoteRpsSincronoResponse {
			return &dom.EnviarLoteRpsSincronoResponse{NumeroLote: req.NumeroLote, NfsesGeradas: []dom.NfseGerada{}}
		},
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildEnviarLoteRps(req, p, true)
		},
		parse: func(raw []byte) (*dom.EnviarLoteRpsSincronoResponse, error) {
			r, err := s.parser.ParseEnviarLoteRpsSincrono(raw)
			if r != nil && r.NumeroLote == "" {
				r.NumeroLote = req.NumeroLote
			}
			return r, err
		},
	})
	if resp.Sucesso {
		for _, n := range resp.NfsesGeradas {
			s.record(ctx, companyID, dom.OpRecepcionarLoteRpsSincrono, n)
		}
	}
	return resp, err
}

// ConsultarSituacaoLoteRps situación (1-4) de un lote por protocolo.
func (s *Service) ConsultarSituacaoLoteRps(ctx context.Context, companyID, protocolo string) (*dom.ConsultarSituacaoLoteRpsResponse, error) {
	return run(ctx, s, companyID, pipeline[*dom.ConsultarSituacaoLoteRpsResponse]{
		op:    dom.OpConsultarSituacaoLoteRps,
		empty: func() *dom.ConsultarSituacaoLoteRpsResponse { return &dom.ConsultarSituacaoLoteRpsResponse{} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildConsultarSituacaoLoteRps(protocolo, p)
		},
		parse: s.parser.ParseConsultarSituacaoLoteRps,
	})
}

// ConsultarLoteRps NFSes generadas por un lote ya procesado.
func (s *Service) ConsultarLoteRps(ctx context.Context, companyID, protocolo string) (*dom.ConsultarLoteRpsResponse, error) {
	return run(ctx, s, companyID, pipeline[*dom.ConsultarLoteRpsResponse]{
		op: dom.OpConsultarLoteRps,
		empty: func() *dom.ConsultarLoteRpsResponse {
			return &dom.ConsultarLoteRpsResponse{NfsesGeradas: []dom.NfseGerada{}}
		},
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildConsultarLoteRps(protocolo, p)
		},
		parse: s.parser.ParseConsultarLoteRps,
	})
}

// ConsultarNfsePorRps NFSe que generó un RPS.
func (s *Service) ConsultarNfsePorRps(ctx context.Context, companyID string, req dom.ConsultarNfsePorRpsRequest) (*dom.ConsultarNfsePorRpsResponse, error) {
	resp, err := run(ctx, s, companyID, pipeline[*dom.ConsultarNfsePorRpsResponse]{
		op:    dom.OpConsultarNfsePorRps,
		empty: func() *dom.ConsultarNfsePorRpsResponse { return &dom.ConsultarNfsePorRpsResponse{} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildConsultarNfsePorRps(req, p)
		},
		parse: s.parser.ParseConsultarNfsePorRps,
	})
	if resp.Sucesso && resp.Nfse != nil {
		s.record(ctx, companyID, dom.OpConsultarNfsePorRps, *resp.Nfse)
	}
	return resp, err
}

// ConsultarNfse NFSes de servicios prestados por período, paginado.
func (s *Service) ConsultarNfse(ctx context.Context, companyID string, req dom.ConsultarNfseRequest) (*dom.ConsultarNfseResponse, error) {
	return run(ctx, s, companyID, pipeline[*dom.ConsultarNfseResponse]{
		op: dom.OpConsultarNfseServicoPrestado,
		empty: func() *dom.ConsultarNfseResponse {
			return &dom.ConsultarNfseResponse{Nfses: []dom.NfseGerada{}, PaginaAtual: req.PaginaOrDefault()}
		},
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildConsultarNfseServicoPrestado(req, p)
		},
		parse: func(raw []byte) (*dom.ConsultarNfseResponse, error) {
			return s.parser.ParseConsultarNfse(raw, req.PaginaOrDefault())
		},
	})
}

// CancelarNfse pide el cancelamiento de una NFSe emitida.
func (s *Service) CancelarNfse(ctx context.Context, companyID string, req dom.CancelarNfseRequest) (*dom.CancelarNfseResponse, error) {
	resp, err := run(ctx, s, companyID, pipeline[*dom.CancelarNfseResponse]{
		op:    dom.OpCancelarNfse,
		empty: func() *dom.CancelarNfseResponse { return &dom.CancelarNfseResponse{} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildCancelarNfse(req, p)
		},
		parse: s.parser.ParseCancelarNfse,
	})
	if resp.Sucesso {
		if resp.NumeroNfseCancelada == nil {
			numero := req.NumeroNfse
			resp.NumeroNfseCancelada = &numero
		}
		s.markCancelada(ctx, companyID, *resp.NumeroNfseCancelada, resp.DataCancelamento)
	}
	return resp, err
}

// SubstituirNfse cancela una NFSe y emite otra a partir del RPS sustituto.
func (s *Service) SubstituirNfse(ctx context.Context, companyID string, req dom.SubstituirNfseRequest) (*dom.SubstituirNfseResponse, error) {
	resp, err := run(ctx, s, companyID, pipeline[*dom.SubstituirNfseResponse]{
		op:    dom.OpSubstituirNfse,
		empty: func() *dom.SubstituirNfseResponse { return &dom.SubstituirNfseResponse{} },
		build: func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error) {
			return b.BuildSubstituirNfse(req, p)
		},
		parse: s.parser.ParseSubstituirNfse,
	})
	if resp.Sucesso {
		if resp.NumeroNfseCancelada == nil {
			numero := req.NumeroNfseSubstituida
			resp.NumeroNfseCancelada = &numero
		}
		s.recordSubstituicao(ctx, companyID, *resp.NumeroNfseCancelada, resp.NfseSubstituta)
	}
	return resp, err
}

// ── Pipeline ───────────────────────────────────────────────────────────────

// pipeline partes propias de cada operación; el resto lo resuelve run.
type pipeline[R dom.Response] struct {
	op    dom.Operation
	empty func() R
	build func(b *infranfse.XMLBuilder, p dom.Prestador) ([]byte, error)
	parse func(raw []byte) (R, error)
}

// run ejecuta el pipeline completo. Nunca devuelve una respuesta nil.
func run[R dom.Response](ctx context.Context, s *Service, companyID string, pl pipeline[R]) (R, error) {
	start := s.now()
	log := s.log.With().Str("tenant", companyID).Str("operacao", pl.op.String()).Logger()

	var enviado, retorno []byte
	abort := func(err error) R {
		resp := pl.empty()
		base := resp.Base()
		base.XmlEnviado = string(enviado)
		base.XmlRetorno = string(retorno)
		fail(base, err, log)
		return resp
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 0. Pre-flight del tenant + proveedor del municipio
	// ═══════════════════════════════════════════════════════════════════════
	tc, err := s.prepare(ctx, companyID)
	if err != nil {
		var pre *PreflightError
		if errors.As(err, &pre) {
			return abort(err), err
		}
		return abort(err), nil
	}
	log.Info().
		Str("municipio", tc.desc.Municipio().Label()).
		Bool("producao", tc.company.IsProducao()).
		Msg("[NFSe] iniciando operação")

	// ═══════════════════════════════════════════════════════════════════════
	// 1. Documento ABRASF
	// ═══════════════════════════════════════════════════════════════════════
	doc, err := pl.build(infranfse.NewXMLBuilder(tc.desc.Namespace, tc.desc.VersaoAbrasf), tc.prestador)
	if err != nil {
		return abort(err), nil
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 2. Certificado (por llamada) + firma
	// ═══════════════════════════════════════════════════════════════════════
	cert, err := s.certificate(ctx, companyID)
	if err != nil {
		return abort(err), nil
	}
	enviado = doc
	if pl.op.Signable() {
		if enviado, err = s.signer.Sign(doc, cert); err != nil {
			enviado = nil
			return abort(err), nil
		}
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 3. Envelope SOAP del proveedor + envío mTLS
	// ═══════════════════════════════════════════════════════════════════════
	envelope, err := tc.provider.Wrap(enviado, pl.op)
	if err != nil {
		return abort(err), nil
	}
	url := tc.desc.URL(tc.company.IsProducao())
	log.Debug().Str("url", url).Int("bytes_enviados", len(envelope)).Msg("[NFSe] enviando envelope")

	res, err := s.transport.Send(ctx, url, tc.provider.SoapAction(pl.op), envelope, cert)
	if err != nil {
		var te *infranfse.TransportError
		if errors.As(err, &te) {
			retorno = te.Body
		}
		return abort(err), nil
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 4. Normalización del retorno
	// ═══════════════════════════════════════════════════════════════════════
	retorno = tc.provider.Unwrap(res.Body, pl.op)
	resp, err := pl.parse(retorno)
	if err != nil {
		return abort(err), nil
	}
	base := resp.Base()
	base.XmlEnviado = string(enviado)
	base.XmlRetorno = string(retorno)

	log.Info().
		Bool("sucesso", base.Sucesso).
		Int("mensagens", len(base.Mensagens)).
		Int("bytes_recebidos", len(res.Body)).
		Dur("duracao", s.now().Sub(start)).
		Msg("[NFSe] operação concluída")
	return resp, nil
}

// ── Historial ──────────────────────────────────────────────────────────────

// record guarda la NFSe en el historial. Una falla aquí no cambia el resultado
// de la operación: la NFSe ya existe en la prefeitura.
func (s *Service) record(ctx context.Context, companyID string, op dom.Operation, n dom.NfseGerada) {
	e := s.newEmissao(companyID, op, n)
	if s.emissoes == nil || e == nil {
		return
	}
	if err := s.emissoes.Save(ctx, e); err != nil {
		s.logEmissao(companyID, n.Numero).Warn().Err(err).Msg("[NFSe] não foi possível registrar a emissão")
	}
}

func (s *Service) newEmissao(companyID string, op dom.Operation, n dom.NfseGerada) *entity.Emissao {
	if n.Numero == 0 {
		return nil
	}
	e := &entity.Emissao{
		ID:                uuid.NewString(),
		CompanyID:         companyID,
		Operacao:          op.String(),
		Numero:            n.Numero,
		CodigoVerificacao: n.CodigoVerificacao,
		DataEmissao:       n.DataEmissao,
		XmlNfse:           n.XmlNfse,
		CreatedAt:         s.now(),
	}
	if d, err := s.parser.ParseDanfse([]byte(n.XmlNfse)); err == nil {
		e.ValorServicos = d.ValorServicos
	}
	return e
}

func (s *Service) markCancelada(ctx context.Context, companyID string, numero int64, at *time.Time) {
	if s.emissoes == nil {
		return
	}
	when := s.now()
	if at != nil {
		when = *at
	}
	if err := s.emissoes.MarkCancelada(ctx, companyID, numero, when); err != nil {
		s.logEmissao(companyID, numero).Warn().Err(err).Msg("[NFSe] não foi possível marcar a NFSe como cancelada")
	}
}

// recordSubstituicao marca la NFSe sustituida y guarda la sustituta; con
// EmissaoTxRunner ambas escrituras van en la misma transacción.
func (s *Service) recordSubstituicao(ctx context.Context, companyID string, cancelada int64, substituta *dom.NfseGerada) {
	if s.tx == nil {
		s.markCancelada(ctx, companyID, cancelada, nil)
		if substituta != nil {
			s.record(ctx, companyID, dom.OpSubstituirNfse, *substituta)
		}
		return
	}
	err := s.tx.RunEmissoes(ctx, func(emissoes repository.EmissaoRepository) error {
		if err := emissoes.MarkCancelada(ctx, companyID, cancelada, s.now()); err != nil {
			return err
		}
		if substituta == nil {
			return nil
		}
		if e := s.newEmissao(companyID, dom.OpSubstituirNfse, *substituta); e != nil {
			return emissoes.Save(ctx, e)
		}
		return nil
	})
	if err != nil {
		s.logEmissao(companyID, cancelada).Warn().Err(err).Msg("[NFSe] não foi possível registrar a substituição")
	}
}

func (s *Service) logEmissao(companyID string, numero int64) *zerolog.Logger {
	l := s.log.With().Str("tenant", companyID).Int64("numero", numero).Logger()
	return &l
}

package nfse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
)

// RawXMLRequest documento ABRASF armado por el integrador, sin namespaces del proveedor.
type RawXMLRequest struct {
	XmlContent string `json:"xml_content"`
	MetodoSoap string `json:"metodo_soap"`
	SoapAction string `json:"soap_action,omitempty"` // vacío = tabla del proveedor
	IsSincrono bool   `json:"is_sincrono"`
}

// RawXMLResponse resultado del XML directo con cada etapa del documento.
type RawXMLResponse struct {
	Sucesso              bool                  `json:"sucesso"`
	Mensagem             string                `json:"mensagem"`
	Mensagens            []dom.MensagemRetorno `json:"mensagens"`
	XmlOriginal          string                `json:"xml_original"`
	XmlAssinado          string                `json:"xml_assinado,omitempty"`
	XmlResposta          string                `json:"xml_resposta,omitempty"`
	HttpStatusCode       int                   `json:"http_status_code,omitempty"`
	TempoProcessamentoMs int64                 `json:"tempo_processamento_ms"`
}

func (r *RawXMLResponse) fail(codigo, mensagem string) {
	r.Sucesso = false
	r.Mensagem = mensagem
	r.Mensagens = append(r.Mensagens, dom.MensagemRetorno{Codigo: codigo, Mensagem: mensagem})
}

// Atalho método fijo de las rutas /xml/{atalho}.
type Atalho struct {
	Metodo   dom.Operation
	Sincrono bool
}

var atalhos = map[string]Atalho{
	"gerar-nfse":              {dom.OpGerarNfse, false},
	"enviar-lote":             {dom.OpRecepcionarLoteRps, false},
	"enviar-lote-sincrono":    {dom.OpRecepcionarLoteRpsSincrono, true},
	"consultar-situacao-lote": {dom.OpConsultarSituacaoLoteRps, false},
	"consultar-lote":          {dom.OpConsultarLoteRps, false},
	"consultar-nfse-rps":      {dom.OpConsultarNfsePorRps, false},
	"consultar-nfse":          {dom.OpConsultarNfseServicoPrestado, false},
	"cancelar-nfse":           {dom.OpCancelarNfse, false},
	"substituir-nfse":         {dom.OpSubstituirNfse, false},
}

// ResolveAtalho método SOAP de un atalho de ruta.
func ResolveAtalho(nome string) (Atalho, bool) {
	a, ok := atalhos[nome]
	return a, ok
}

// XMLDirectService envía XML armado por el integrador: re-namespacing al formato
// del proveedor, firma sobre el documento ya convertido, envelope y envío.
// Comparte pre-flight, certificado y transporte con Service.
type XMLDirectService struct {
	svc *Service
}

// NewXMLDirectService construye el front-end de XML directo sobre el orquestador.
func NewXMLDirectService(svc *Service) *XMLDirectService {
	return &XMLDirectService{svc: svc}
}

// Process ejecuta el XML directo. Igual que Service, el error solo es distinto
// de nil cuando el tenant no pasó el pre-flight.
func (x *XMLDirectService) Process(ctx context.Context, companyID string, req RawXMLRequest) (*RawXMLResponse, error) {
	s := x.svc
	start := s.now()
	op := dom.Operation(strings.TrimSpace(req.MetodoSoap))
	log := s.log.With().Str("tenant", companyID).Str("operacao", op.String()).Str("via", "xml-direto").Logger()

	resp := &RawXMLResponse{XmlOriginal: req.XmlContent, Mensagens: []dom.MensagemRetorno{}}
	defer func() {
		resp.TempoProcessamentoMs = s.now().Sub(start).Milliseconds()
		log.Info().
			Bool("sucesso", resp.Sucesso).
			Int("http_status", resp.HttpStatusCode).
			Int64("tempo_ms", resp.TempoProcessamentoMs).
			Msg("[NFSe] XML direto concluído")
	}()
	abort := func(err error) {
		codigo, mensagem, internal := faultOf(err)
		resp.fail(codigo, mensagem)
		if internal {
			log.Error().Err(err).Msg("[NFSe] erro interno no XML direto")
			return
		}
		log.Warn().Err(err).Str("codigo", codigo).Msg("[NFSe] XML direto não concluído")
	}

	if strings.TrimSpace(req.XmlContent) == "" || op == "" {
		abort(&dom.ValidationError{Fields: []string{"xml_content e metodo_soap são obrigatórios"}})
		return resp, nil
	}

	tc, err := s.prepare(ctx, companyID)
	if err != nil {
		abort(err)
		var pre *PreflightError
		if errors.As(err, &pre) {
			return resp, err
		}
		return resp, nil
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 1. Re-namespacing al formato del proveedor
	// ═══════════════════════════════════════════════════════════════════════
	converted, err := infranfse.Renamespace([]byte(req.XmlContent), tc.desc.Raw, req.IsSincrono)
	if err != nil {
		abort(err)
		return resp, nil
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 2. Firma sobre el documento convertido
	// ═══════════════════════════════════════════════════════════════════════
	cert, err := s.certificate(ctx, companyID)
	if err != nil {
		abort(err)
		return resp, nil
	}
	signed := converted
	if op.Signable() {
		out, err := s.signer.Sign(converted, cert)
		switch {
		case err == nil:
			signed = out
		case errors.Is(err, domain.ErrNoSignableElements):
			if _, known := op.Info(); known {
				abort(err)
				return resp, nil
			}
			log.Debug().Msg("[NFSe] documento sem elementos Id, enviado sem assinatura")
		default:
			abort(err)
			return resp, nil
		}
	}
	resp.XmlAssinado = string(signed)

	// ═══════════════════════════════════════════════════════════════════════
	// 3. Envelope + envío
	// ═══════════════════════════════════════════════════════════════════════
	envelope, err := tc.provider.WrapRaw(signed, op)
	if err != nil {
		abort(err)
		return resp, nil
	}
	action := strings.TrimSpace(req.SoapAction)
	if action == "" {
		action = tc.provider.SoapAction(op)
	}
	res, err := s.transport.Send(ctx, tc.desc.URL(tc.company.IsProducao()), action, envelope, cert)
	if err != nil {
		var te *infranfse.TransportError
		if errors.As(err, &te) {
			resp.HttpStatusCode = te.StatusCode
			resp.XmlResposta = string(te.Body)
		}
		abort(err)
		return resp, nil
	}
	resp.HttpStatusCode = res.StatusCode

	// ═══════════════════════════════════════════════════════════════════════
	// 4. Mensagens del retorno
	// ═══════════════════════════════════════════════════════════════════════
	inner := tc.provider.Unwrap(res.Body, op)
	resp.XmlResposta = string(inner)
	base, err := s.parser.ParseGeneric(inner)
	if err != nil {
		abort(err)
		return resp, nil
	}
	resp.Mensagens = append(resp.Mensagens, base.Mensagens...)
	resp.Sucesso = base.Sucesso
	if resp.Sucesso {
		resp.Mensagem = "XML processado com sucesso."
	} else {
		resp.Mensagem = fmt.Sprintf("A prefeitura retornou %d mensagem(ns).", len(base.Mensagens))
	}
	return resp, nil
}

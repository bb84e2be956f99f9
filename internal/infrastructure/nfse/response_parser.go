package nfse

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

// layouts de fecha aceptados en DataEmissao, DataRecebimento y DataHora.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ResponseParser normaliza el XML de retorno de la prefeitura al resultado
// canónico. Los elementos se buscan por nombre local, sin importar el namespace.
// Cualquier MensagemRetorno deja la respuesta con Sucesso=false.
type ResponseParser struct{}

// NewResponseParser construye el normalizador.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse despacha por operación. Métodos sin normalizador propio devuelven
// solo las mensagens.
func (p *ResponseParser) Parse(raw []byte, op dom.Operation) (dom.Response, error) {
	switch op {
	case dom.OpGerarNfse:
		return p.ParseGerarNfse(raw)
	case dom.OpRecepcionarLoteRps:
		return p.ParseEnviarLoteRps(raw)
	case dom.OpRecepcionarLoteRpsSincrono:
		return p.ParseEnviarLoteRpsSincrono(raw)
	case dom.OpConsultarSituacaoLoteRps:
		return p.ParseConsultarSituacaoLoteRps(raw)
	case dom.OpConsultarLoteRps:
		return p.ParseConsultarLoteRps(raw)
	case dom.OpConsultarNfsePorRps:
		return p.ParseConsultarNfsePorRps(raw)
	case dom.OpConsultarNfseServicoPrestado:
		return p.ParseConsultarNfse(raw, 1)
	case dom.OpCancelarNfse:
		return p.ParseCancelarNfse(raw)
	case dom.OpSubstituirNfse:
		return p.ParseSubstituirNfse(raw)
	}
	return p.ParseGeneric(raw)
}

// ParseGeneric extrae mensagens y NFSes de cualquier retorno (ruta XML directo).
func (p *ResponseParser) ParseGeneric(raw []byte) (*dom.BaseResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.BaseResponse{Mensagens: mensagens(root)}
	resp.Sucesso = len(resp.Mensagens) == 0
	return resp, nil
}

// NfsesOf devuelve las NFSes (CompNfse) presentes en el retorno.
func (p *ResponseParser) NfsesOf(raw []byte) ([]dom.NfseGerada, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	return nfses(root), nil
}

func (p *ResponseParser) ParseGerarNfse(raw []byte) (*dom.GerarNfseResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.GerarNfseResponse{}
	resp.Mensagens = mensagens(root)
	if list := nfses(root); len(list) > 0 {
		resp.Nfse = &list[0]
	}
	resp.Sucesso = len(resp.Mensagens) == 0 && resp.Nfse != nil
	return resp, nil
}

func (p *ResponseParser) ParseEnviarLoteRps(raw []byte) (*dom.EnviarLoteRpsResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.EnviarLoteRpsResponse{
		NumeroLote:      textOf(root, "NumeroLote"),
		Protocolo:       textOf(root, "Protocolo"),
		DataRecebimento: parseDate(textOf(root, "DataRecebimento")),
	}
	resp.Mensagens = mensagens(root)
	resp.Sucesso = len(resp.Mensagens) == 0 && resp.Protocolo != ""
	return resp, nil
}

func (p *ResponseParser) ParseEnviarLoteRpsSincrono(raw []byte) (*dom.EnviarLoteRpsSincronoResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.EnviarLoteRpsSincronoResponse{
		NumeroLote:   textOf(root, "NumeroLote"),
		NfsesGeradas: nfses(root),
	}
	resp.Mensagens = mensagens(root)
	resp.Sucesso = len(resp.Mensagens) == 0 && len(resp.NfsesGeradas) > 0
	return resp, nil
}

func (p *ResponseParser) ParseConsultarSituacaoLoteRps(raw []byte) (*dom.ConsultarSituacaoLoteRpsResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.ConsultarSituacaoLoteRpsResponse{}
	resp.Mensagens = mensagens(root)
	if s := textOf(root, "Situacao"); s != "" {
		codigo, convErr := strconv.Atoi(s)
		if convErr != nil {
			codigo = 0
		}
		resp.Situacao = &codigo
		resp.DescricaoSituacao = abrasf.DescricaoSituacao(codigo)
	}
	resp.Sucesso = len(resp.Mensagens) == 0 && resp.Situacao != nil
	return resp, nil
}

func (p *ResponseParser) ParseConsultarLoteRps(raw []byte) (*dom.ConsultarLoteRpsResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.ConsultarLoteRpsResponse{NfsesGeradas: nfses(root)}
	resp.Mensagens = mensagens(root)
	resp.Sucesso = len(resp.Mensagens) == 0
	return resp, nil
}

func (p *ResponseParser) ParseConsultarNfsePorRps(raw []byte) (*dom.ConsultarNfsePorRpsResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.ConsultarNfsePorRpsResponse{}
	resp.Mensagens = mensagens(root)
	if list := nfses(root); len(list) > 0 {
		resp.Nfse = &list[0]
	}
	resp.Sucesso = len(resp.Mensagens) == 0 && resp.Nfse != nil
	return resp, nil
}

// ParseConsultarNfse normaliza una página de ConsultarNfseServicoPrestado.
// paginaSolicitada se usa cuando el retorno no trae <Pagina>. Si hay
// <ProximaPagina> el total se informa como la página actual + 1.
func (p *ResponseParser) ParseConsultarNfse(raw []byte, paginaSolicitada int) (*dom.ConsultarNfseResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	if paginaSolicitada <= 0 {
		paginaSolicitada = 1
	}
	resp := &dom.ConsultarNfseResponse{Nfses: nfses(root), PaginaAtual: paginaSolicitada}
	resp.Mensagens = mensagens(root)

	if n, convErr := strconv.Atoi(textOf(root, "Pagina")); convErr == nil && n > 0 {
		resp.PaginaAtual = n
	}
	resp.TotalPaginas = resp.PaginaAtual
	if textOf(root, "ProximaPagina") != "" {
		resp.TotalPaginas = resp.PaginaAtual + 1
	}
	resp.Sucesso = len(resp.Mensagens) == 0
	return resp, nil
}

func (p *ResponseParser) ParseCancelarNfse(raw []byte) (*dom.CancelarNfseResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.CancelarNfseResponse{}
	resp.Mensagens = mensagens(root)

	conf := findLocal(root, "InfConfirmacaoCancelamento", "ConfirmacaoCancelamento", "Confirmacao")
	if conf != nil {
		numero := textOf(conf, "Numero")
		if numero == "" {
			if id := findLocal(root, "IdentificacaoNfse"); id != nil {
				numero = textOf(id, "Numero")
			}
		}
		if n, ok := parseInt64(numero); ok {
			resp.NumeroNfseCancelada = &n
		}
		resp.DataCancelamento = parseDate(textOf(conf, "DataHora"))
	}
	resp.Sucesso = len(resp.Mensagens) == 0 && conf != nil
	return resp, nil
}

func (p *ResponseParser) ParseSubstituirNfse(raw []byte) (*dom.SubstituirNfseResponse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, err
	}
	resp := &dom.SubstituirNfseResponse{}
	resp.Mensagens = mensagens(root)

	sub := findLocal(root, "SubstituicaoNfse", "RetSubstituicao")
	if sub != nil {
		substituida := findLocal(sub, "NfseSubstituida")
		if substituida != nil {
			// GISS devuelve el número directo o la CompNfse completa de la nota cancelada.
			numero := strings.TrimSpace(substituida.Text())
			if inf := findLocal(substituida, "InfNfse"); inf != nil {
				numero = textOf(inf, "Numero")
			}
			if n, ok := parseInt64(numero); ok {
				resp.NumeroNfseCancelada = &n
			}
		}
		holder := sub
		if substituidora := findLocal(sub, "NfseSubstituidora"); substituidora != nil {
			holder = substituidora
		}
		walk(holder, func(el *etree.Element) bool {
			if el == substituida || resp.NfseSubstituta != nil {
				return false
			}
			if el.Tag != "CompNfse" {
				return true
			}
			if n, ok := nfseOf(el); ok {
				resp.NfseSubstituta = &n
			}
			return false
		})
	}
	resp.Sucesso = len(resp.Mensagens) == 0 && sub != nil
	return resp, nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func readRoot(raw []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: não é XML válido: %w", domain.ErrInvalidReply, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: corpo vazio", domain.ErrInvalidReply)
	}
	return root, nil
}

// charsetReader soporta los encodings que declaran algunos proveedores legados.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("nfse: encoding não suportado %q", label)
}

// mensagens recoge MensagemRetorno y MensagemRetornoLote en orden de documento.
func mensagens(root *etree.Element) []dom.MensagemRetorno {
	out := []dom.MensagemRetorno{}
	walk(root, func(el *etree.Element) bool {
		if el.Tag != "MensagemRetorno" && el.Tag != "MensagemRetornoLote" {
			return true
		}
		out = append(out, dom.MensagemRetorno{
			Codigo:   childText(el, "Codigo"),
			Mensagem: childText(el, "Mensagem"),
			Correcao: childText(el, "Correcao"),
		})
		return false
	})
	return out
}

// nfses cada CompNfse del retorno con Nfse/InfNfse.
func nfses(root *etree.Element) []dom.NfseGerada {
	out := []dom.NfseGerada{}
	walk(root, func(el *etree.Element) bool {
		if el.Tag != "CompNfse" {
			return true
		}
		if n, ok := nfseOf(el); ok {
			out = append(out, n)
		}
		return false
	})
	return out
}

func nfseOf(comp *etree.Element) (dom.NfseGerada, bool) {
	nfse := childLocal(comp, "Nfse")
	if nfse == nil {
		return dom.NfseGerada{}, false
	}
	inf := childLocal(nfse, "InfNfse")
	if inf == nil {
		return dom.NfseGerada{}, false
	}
	numero, _ := parseInt64(childText(inf, "Numero"))
	return dom.NfseGerada{
		Numero:            numero,
		CodigoVerificacao: childText(inf, "CodigoVerificacao"),
		DataEmissao:       parseDate(childText(inf, "DataEmissao")),
		XmlNfse:           outerXML(comp),
		LinkVisualizacao:  textOf(inf, "LinkNfse"),
	}, true
}

// walk recorre el subárbol en orden de documento; visit=false no desciende.
func walk(el *etree.Element, visit func(*etree.Element) bool) {
	if !visit(el) {
		return
	}
	for _, child := range el.ChildElements() {
		walk(child, visit)
	}
}

func findLocal(el *etree.Element, names ...string) *etree.Element {
	var found *etree.Element
	walk(el, func(e *etree.Element) bool {
		if found != nil {
			return false
		}
		for _, n := range names {
			if e.Tag == n {
				found = e
				return false
			}
		}
		return true
	})
	return found
}

func childLocal(el *etree.Element, name string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

func childText(el *etree.Element, name string) string {
	if c := childLocal(el, name); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// textOf texto del primer descendiente con ese nombre local.
func textOf(el *etree.Element, name string) string {
	if c := findLocal(el, name); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// outerXML serializa el elemento declarando los namespaces heredados de sus ancestros.
func outerXML(el *etree.Element) string {
	cp := el.Copy()
	declared := map[string]bool{}
	for _, a := range cp.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			declared[a.FullKey()] = true
		}
	}
	for parent := el.Parent(); parent != nil; parent = parent.Parent() {
		for i := range parent.Attr {
			a := &parent.Attr[i]
			if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
				continue
			}
			if key := a.FullKey(); !declared[key] {
				declared[key] = true
				cp.CreateAttr(key, a.Value)
			}
		}
	}
	doc := etree.NewDocument()
	doc.SetRoot(cp)
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDate nil cuando el valor está vacío o no reconoce el formato.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

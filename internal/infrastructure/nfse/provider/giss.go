package provider

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
)

// Namespaces del envelope GISS.
const (
	NamespaceSOAP         = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceABRASF       = "http://nfse.abrasf.org.br"
	NamespaceCabecalho    = "http://www.abrasf.org.br/nfse.xsd"
	NamespaceCabecalhoRaw = "http://www.giss.com.br/cabecalho-v2_04.xsd"
)

// gissActions SOAPAction por método. Métodos fuera de la tabla usan {NamespaceABRASF}/{metodo}.
var gissActions = map[dom.Operation]string{
	dom.OpGerarNfse:                    NamespaceABRASF + "/GerarNfse",
	dom.OpRecepcionarLoteRps:           NamespaceABRASF + "/RecepcionarLoteRps",
	dom.OpRecepcionarLoteRpsSincrono:   NamespaceABRASF + "/RecepcionarLoteRpsSincrono",
	dom.OpConsultarSituacaoLoteRps:     NamespaceABRASF + "/ConsultarSituacaoLoteRps",
	dom.OpConsultarLoteRps:             NamespaceABRASF + "/ConsultarLoteRps",
	dom.OpConsultarNfsePorRps:          NamespaceABRASF + "/ConsultarNfsePorRps",
	dom.OpConsultarNfseServicoPrestado: NamespaceABRASF + "/ConsultarNfseServicoPrestado",
	dom.OpConsultarNfseServicoTomado:   NamespaceABRASF + "/ConsultarNfseServicoTomado",
	dom.OpCancelarNfse:                 NamespaceABRASF + "/CancelarNfse",
	dom.OpSubstituirNfse:               NamespaceABRASF + "/SubstituirNfse",
}

// GISSProvider envelope SOAP 1.1 del sistema GISS: <nfse:{Metodo}Request> con
// nfseCabecMsg y nfseDadosMsg en CDATA.
type GISSProvider struct {
	desc Descriptor
}

// NewGISS crea un proveedor GISS para el municipio descrito.
func NewGISS(desc Descriptor) *GISSProvider {
	return &GISSProvider{desc: desc}
}

// Descriptor implementa Provider.
func (p *GISSProvider) Descriptor() Descriptor { return p.desc }

// SoapAction implementa Provider.
func (p *GISSProvider) SoapAction(op dom.Operation) string {
	if a, ok := gissActions[op]; ok {
		return a
	}
	return NamespaceABRASF + "/" + op.String()
}

// Wrap implementa Provider.
func (p *GISSProvider) Wrap(signedXML []byte, op dom.Operation) ([]byte, error) {
	return p.envelope(signedXML, op, NamespaceCabecalho)
}

// WrapRaw implementa Provider con el cabecalho GISS v2_04.
func (p *GISSProvider) WrapRaw(signedXML []byte, op dom.Operation) ([]byte, error) {
	return p.envelope(signedXML, op, NamespaceCabecalhoRaw)
}

func (p *GISSProvider) envelope(signedXML []byte, op dom.Operation, nsCabecalho string) ([]byte, error) {
	if op == "" {
		return nil, fmt.Errorf("giss: método SOAP não informado")
	}
	versao := p.desc.VersaoAbrasf
	cabecalho := `<cabecalho xmlns="` + nsCabecalho + `" versao="` + versao + `"><versaoDados>` + versao + `</versaoDados></cabecalho>`

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", NamespaceSOAP)
	env.CreateAttr("xmlns:nfse", NamespaceABRASF)
	req := env.CreateElement("soap:Body").CreateElement("nfse:" + op.String() + "Request")
	req.CreateElement("nfseCabecMsg").CreateCData(cabecalho)
	req.CreateElement("nfseDadosMsg").CreateCData(string(signedXML))

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("giss: serializar envelope: %w", err)
	}
	return out, nil
}

// Unwrap implementa Provider. Busca outputXML o return (en cualquier nivel) y, si
// no existen, <{Metodo}Response>. Sin coincidencias devuelve el primer hijo de
// Body o la respuesta completa.
func (p *GISSProvider) Unwrap(raw []byte, op dom.Operation) []byte {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(raw); err != nil {
		return raw
	}
	root := doc.Root()
	if root == nil {
		return raw
	}

	el := findLocal(root, "outputXML", "return")
	if el == nil {
		el = findLocal(root, op.String()+"Response")
	}
	if el != nil {
		return contentOf(el)
	}

	if body := findLocal(root, "Body"); body != nil {
		if children := body.ChildElements(); len(children) > 0 {
			return serialize(children[0], raw)
		}
	}
	return raw
}

// contentOf texto completo si trae el XML (declaración o marcado escapado),
// si no el primer CDATA hijo, si no el propio elemento serializado.
func contentOf(el *etree.Element) []byte {
	text := innerText(el)
	trimmed := strings.TrimSpace(text)
	if strings.Contains(text, "<?xml") || strings.HasPrefix(trimmed, "<") {
		return []byte(trimmed)
	}
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok && cd.IsCData() {
			return []byte(cd.Data)
		}
	}
	return serialize(el, nil)
}

// findLocal primer descendiente (orden de documento, incluye el propio el) cuyo
// nombre local coincide con alguno de names.
func findLocal(el *etree.Element, names ...string) *etree.Element {
	for _, n := range names {
		if el.Tag == n {
			return el
		}
	}
	for _, child := range el.ChildElements() {
		if found := findLocal(child, names...); found != nil {
			return found
		}
	}
	return nil
}

// innerText concatena todos los nodos de texto y CDATA del subárbol.
func innerText(el *etree.Element) string {
	var sb strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				sb.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return sb.String()
}

func serialize(el *etree.Element, fallback []byte) []byte {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return fallback
	}
	return buf.Bytes()
}

var _ Provider = (*GISSProvider)(nil)

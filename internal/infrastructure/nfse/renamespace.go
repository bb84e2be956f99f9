package nfse

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/signer"
)

// target prefijos y namespaces de destino de una conversión.
type target struct {
	rootPrefix, rootNS   string
	typesPrefix, typesNS string
}

// Renamespace convierte un documento agnóstico al formato del proveedor: la raíz
// pasa a raw.RootNamespace(sincrono), los demás elementos al namespace de tipos y
// toda <Signature> (con su subárbol) queda en xmldsig sin prefijo. Texto, CDATA y
// atributos se copian; las declaraciones xmlns originales se descartan.
func Renamespace(xmlBytes []byte, raw provider.RawNamespaces, sincrono bool) ([]byte, error) {
	t := target{
		rootPrefix:  raw.RootPrefix,
		rootNS:      raw.RootNamespace(sincrono),
		typesPrefix: raw.TypesPrefix,
		typesNS:     raw.Types,
	}
	if t.rootNS == "" || t.typesNS == "" || t.rootPrefix == "" || t.typesPrefix == "" {
		return nil, fmt.Errorf("nfse: provedor sem namespaces para XML direto")
	}

	src := etree.NewDocument()
	src.ReadSettings.PreserveCData = true
	if err := src.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: XML inválido: %w", domain.ErrValidation, err)
	}
	root := src.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: XML inválido: elemento raiz não encontrado", domain.ErrValidation)
	}

	converted := rewrite(root, t, true, false)
	if converted.Space == t.rootPrefix {
		converted.CreateAttr("xmlns:"+t.rootPrefix, t.rootNS)
		converted.CreateAttr("xmlns:"+t.typesPrefix, t.typesNS)
	}

	out := etree.NewDocument()
	out.SetRoot(converted)
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfse: serializar XML convertido: %w", err)
	}
	return b, nil
}

// rewrite copia el.Tag con el prefijo que corresponde a su posición. insideSignature
// se propaga a todo el subárbol de la primera <Signature> encontrada.
func rewrite(el *etree.Element, t target, isRoot, insideSignature bool) *etree.Element {
	out := etree.NewElement(el.Tag)

	switch {
	case insideSignature:
	case el.Tag == "Signature":
		insideSignature = true
		out.CreateAttr("xmlns", signer.NamespaceDS)
	case isRoot:
		out.Space = t.rootPrefix
	default:
		out.Space = t.typesPrefix
	}

	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		out.CreateAttr(a.Key, a.Value)
	}

	for _, tok := range el.Child {
		switch c := tok.(type) {
		case *etree.Element:
			out.AddChild(rewrite(c, t, false, insideSignature))
		case *etree.CharData:
			if c.IsCData() {
				out.CreateCData(c.Data)
			} else {
				out.CreateText(c.Data)
			}
		}
	}
	return out
}

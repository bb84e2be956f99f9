// Servicio de firma XMLDSig enveloped para documentos ABRASF.
// Firma cada elemento con atributo Id (InfDeclaracaoPrestacaoServico, LoteRps,
// InfPedidoCancelamento) con una única <Signature> al final de la raíz.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

// DigitalSignatureService implementa abrasf.Signer.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign firma el XML con el certificado A1 ya decodificado.
// Un documento sin elementos Id devuelve domain.ErrNoSignableElements.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(bytes.TrimSpace(xmlBytes)) == 0 {
		return nil, fmt.Errorf("nfse: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nfse: el certificado debe incluir llave privada RSA")
	}
	leaf, err := leafOf(cert)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfse: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("nfse: documento sin raíz")
	}

	// Incluye la raíz cuando ella misma lleva Id (XML directo).
	targets := withoutSignatures(doc.FindElements("//*[@" + IDAttribute + "]"))
	if len(targets) == 0 {
		return nil, domain.ErrNoSignableElements
	}

	// 1) Un Reference por elemento, en orden de documento.
	refs := make([]reference, 0, len(targets))
	for _, el := range targets {
		canonical, err := canonicalizeElement(el)
		if err != nil {
			return nil, fmt.Errorf("nfse: canonicalizar #%s: %w", el.SelectAttrValue(IDAttribute, ""), err)
		}
		digest := sha256.Sum256(canonical)
		refs = append(refs, reference{
			uri:    "#" + el.SelectAttrValue(IDAttribute, ""),
			digest: base64.StdEncoding.EncodeToString(digest[:]),
		})
	}

	// 2) <Signature> con KeyInfo/X509Data/X509Certificate, último hijo de la raíz.
	signatureXML := buildSignature(buildSignedInfo(refs), base64.StdEncoding.EncodeToString(leaf.Raw))
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("nfse: parsear Signature: %w", err)
	}
	sig := sigDoc.Root()
	root.AddChild(sig)

	// 3) SignedInfo canonicalizado en contexto: hereda los xmlns de la raíz.
	signedInfo := sig.SelectElement("SignedInfo")
	canonicalSignedInfo, err := canonicalizeElement(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("nfse: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("nfse: firmar SignedInfo: %w", err)
	}
	sig.SelectElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(signatureValue))

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("nfse: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

type reference struct {
	uri    string
	digest string
}

// withoutSignatures descarta elementos con Id que estén dentro de una Signature previa.
func withoutSignatures(els []*etree.Element) []*etree.Element {
	out := els[:0]
	for _, el := range els {
		inside := false
		for p := el; p != nil; p = p.Parent() {
			if p.Tag == "Signature" {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, el)
		}
	}
	return out
}

// canonicalizeElement aplica enveloped-signature + C14N al subárbol. Los namespaces
// en alcance se declaran en la copia para que el digest coincida con el del receptor.
func canonicalizeElement(el *etree.Element) ([]byte, error) {
	cp := el.Copy()
	for _, ns := range inScopeNamespaces(el) {
		cp.CreateAttr(ns.FullKey(), ns.Value)
	}
	for _, sig := range cp.FindElements("./Signature") {
		cp.RemoveChild(sig)
	}
	doc := etree.NewDocument()
	doc.SetRoot(cp)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalize(b)
}

// inScopeNamespaces declaraciones xmlns heredadas de los ancestros, la más cercana gana.
func inScopeNamespaces(el *etree.Element) []etree.Attr {
	seen := map[string]bool{}
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			seen[a.FullKey()] = true
		}
	}
	var out []etree.Attr
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
				continue
			}
			if seen[a.FullKey()] {
				continue
			}
			seen[a.FullKey()] = true
			out = append(out, etree.Attr{Space: a.Space, Key: a.Key, Value: a.Value})
		}
	}
	return out
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(refs []reference) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"></CanonicalizationMethod>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"></SignatureMethod>`)
	for _, r := range refs {
		sb.WriteString(`<Reference URI="` + r.uri + `">`)
		sb.WriteString(`<Transforms>`)
		sb.WriteString(`<Transform Algorithm="` + TransformEnveloped + `"></Transform>`)
		sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"></Transform>`)
		sb.WriteString(`</Transforms>`)
		sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"></DigestMethod>`)
		sb.WriteString(`<DigestValue>` + r.digest + `</DigestValue>`)
		sb.WriteString(`</Reference>`)
	}
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

// buildSignature arma la Signature con SignatureValue vacío; se completa tras firmar.
func buildSignature(signedInfoXML, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	// SignedInfo hereda el namespace de Signature.
	sb.WriteString(strings.Replace(signedInfoXML, `<SignedInfo xmlns="`+NamespaceDS+`">`, `<SignedInfo>`, 1))
	sb.WriteString(`<SignatureValue></SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

var _ abrasf.Signer = (*DigitalSignatureService)(nil)

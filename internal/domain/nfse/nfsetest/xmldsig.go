package nfsetest

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// VerifyEnveloped verifica la <Signature> hija de la raíz del lado del receptor:
// cada Reference contra su elemento y SignatureValue contra SignedInfo, ambos
// canonicalizados dentro del documento firmado (C14N inclusiva).
func VerifyEnveloped(signed []byte, pub *rsa.PublicKey) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return fmt.Errorf("parsear documento firmado: %w", err)
	}
	sig := doc.Root().SelectElement("Signature")
	if sig == nil {
		return fmt.Errorf("documento sin Signature en la raíz")
	}
	signedInfo := sig.SelectElement("SignedInfo")
	if signedInfo == nil {
		return fmt.Errorf("Signature sin SignedInfo")
	}

	for _, ref := range signedInfo.SelectElements("Reference") {
		id := strings.TrimPrefix(ref.SelectAttrValue("URI", ""), "#")
		el := doc.FindElement("//*[@Id='" + id + "']")
		if el == nil {
			return fmt.Errorf("Reference #%s sin elemento", id)
		}
		canonical, err := inContext(el)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(canonical)
		want := strings.TrimSpace(ref.SelectElement("DigestValue").Text())
		if got := base64.StdEncoding.EncodeToString(sum[:]); got != want {
			return fmt.Errorf("digest de #%s: calculado %s, firmado %s", id, got, want)
		}
	}

	canonical, err := inContext(signedInfo)
	if err != nil {
		return err
	}
	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sig.SelectElement("SignatureValue").Text()))
	if err != nil {
		return fmt.Errorf("SignatureValue no es base64: %w", err)
	}
	sum := sha256.Sum256(canonical)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], value); err != nil {
		return fmt.Errorf("SignatureValue no verifica: %w", err)
	}
	return nil
}

// inContext canonicaliza el subárbol con las declaraciones xmlns de sus ancestros
// y sin Signature (transformación enveloped).
func inContext(el *etree.Element) ([]byte, error) {
	cp := el.Copy()
	for _, s := range cp.FindElements(".//Signature") {
		s.Parent().RemoveChild(s)
	}

	declared := map[string]bool{}
	for _, a := range cp.Attr {
		if isNamespaceDecl(a) {
			declared[a.FullKey()] = true
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if !isNamespaceDecl(a) || declared[a.FullKey()] {
				continue
			}
			declared[a.FullKey()] = true
			cp.CreateAttr(a.FullKey(), a.Value)
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(cp)
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	out, err := c14n.Canonicalize(xml.NewDecoder(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("c14n de <%s>: %w", el.Tag, err)
	}
	return out, nil
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/nfse/nfsetest"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func testCertificate(t *testing.T, notAfter time.Time) tls.Certificate {
	return nfsetest.Certificate(t, notAfter)
}

const loteXML = `<EnviarLoteRpsEnvio xmlns="http://nfse.abrasf.org.br">` +
	`<LoteRps Id="lote1" versao="2.04"><NumeroLote>1</NumeroLote><ListaRps>` +
	`<Rps><InfDeclaracaoPrestacaoServico Id="rpsA1"><Competencia>2025-03-10</Competencia></InfDeclaracaoPrestacaoServico></Rps>` +
	`<Rps><InfDeclaracaoPrestacaoServico Id="rpsA2"><Competencia>2025-03-10</Competencia></InfDeclaracaoPrestacaoServico></Rps>` +
	`</ListaRps></LoteRps></EnviarLoteRpsEnvio>`

const (
	nsRaiz  = "http://www.giss.com.br/enviar-lote-rps-envio-v2_04.xsd"
	nsTipos = "http://www.giss.com.br/tipos-v2_04.xsd"
)

// lotePrefijado tiene la forma que deja el re-namespacing del XML directo.
const lotePrefijado = `<p:EnviarLoteRpsEnvio xmlns:p="` + nsRaiz + `" xmlns:p1="` + nsTipos + `">` +
	`<p1:LoteRps Id="lote1" versao="2.04"><p1:NumeroLote>1</p1:NumeroLote><p1:ListaRps>` +
	`<p1:Rps><p1:InfDeclaracaoPrestacaoServico Id="rps1"><p1:Competencia>2025-03-10</p1:Competencia></p1:InfDeclaracaoPrestacaoServico></p1:Rps>` +
	`</p1:ListaRps></p1:LoteRps></p:EnviarLoteRpsEnvio>`

func digestOf(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestSign_UnaReferenciaPorId(t *testing.T) {
	cert := testCertificate(t, time.Now().AddDate(1, 0, 0))
	out, err := NewDigitalSignatureService().Sign([]byte(loteXML), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()

	children := root.ChildElements()
	last := children[len(children)-1]
	assert.Equal(t, "Signature", last.Tag, "la firma debe ser el último hijo de la raíz")
	assert.Equal(t, "", last.Space, "Signature sin prefijo")
	assert.Equal(t, NamespaceDS, last.SelectAttrValue("xmlns", ""))

	refs := last.FindElements("./SignedInfo/Reference")
	require.Len(t, refs, 3, "lote + dos RPS")
	assert.Equal(t, "#lote1", refs[0].SelectAttrValue("URI", ""))
	assert.Equal(t, "#rpsA1", refs[1].SelectAttrValue("URI", ""))
	assert.Equal(t, "#rpsA2", refs[2].SelectAttrValue("URI", ""))

	transforms := refs[0].FindElements("./Transforms/Transform")
	require.Len(t, transforms, 2)
	assert.Equal(t, TransformEnveloped, transforms[0].SelectAttrValue("Algorithm", ""))
	assert.Equal(t, AlgC14N, transforms[1].SelectAttrValue("Algorithm", ""))

	certB64 := last.FindElement("./KeyInfo/X509Data/X509Certificate").Text()
	assert.Equal(t, base64.StdEncoding.EncodeToString(cert.Leaf.Raw), certB64)
}

func TestSign_DigestsDeReferencia(t *testing.T) {
	cert := testCertificate(t, time.Now().AddDate(1, 0, 0))
	out, err := NewDigitalSignatureService().Sign([]byte(loteXML), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	// Formas canónicas esperadas: el xmlns heredado de la raíz se declara en el elemento.
	rpsA1 := `<InfDeclaracaoPrestacaoServico xmlns="http://nfse.abrasf.org.br" Id="rpsA1">` +
		`<Competencia>2025-03-10</Competencia></InfDeclaracaoPrestacaoServico>`
	lote := `<LoteRps xmlns="http://nfse.abrasf.org.br" Id="lote1" versao="2.04"><NumeroLote>1</NumeroLote><ListaRps>` +
		`<Rps><InfDeclaracaoPrestacaoServico Id="rpsA1"><Competencia>2025-03-10</Competencia></InfDeclaracaoPrestacaoServico></Rps>` +
		`<Rps><InfDeclaracaoPrestacaoServico Id="rpsA2"><Competencia>2025-03-10</Competencia></InfDeclaracaoPrestacaoServico></Rps>` +
		`</ListaRps></LoteRps>`

	assert.Equal(t, digestOf(lote), doc.FindElement(`//Reference[@URI='#lote1']/DigestValue`).Text())
	assert.Equal(t, digestOf(rpsA1), doc.FindElement(`//Reference[@URI='#rpsA1']/DigestValue`).Text())

	pub := cert.Leaf.PublicKey.(*rsa.PublicKey)
	assert.NoError(t, nfsetest.VerifyEnveloped(out, pub), "la firma debe verificar del lado del receptor")
}

func TestSign_DocumentoConPrefijos(t *testing.T) {
	cert := testCertificate(t, time.Now().AddDate(1, 0, 0))
	out, err := NewDigitalSignatureService().Sign([]byte(lotePrefijado), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	rps := `<p1:InfDeclaracaoPrestacaoServico xmlns:p="` + nsRaiz + `" xmlns:p1="` + nsTipos + `" Id="rps1">` +
		`<p1:Competencia>2025-03-10</p1:Competencia></p1:InfDeclaracaoPrestacaoServico>`
	assert.Equal(t, digestOf(rps), doc.FindElement(`//Reference[@URI='#rps1']/DigestValue`).Text(),
		"el RPS arrastra los dos prefijos declarados en la raíz")

	// SignedInfo en contexto: xmldsig por defecto más los prefijos de la raíz.
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `" xmlns:p="` + nsRaiz + `" xmlns:p1="` + nsTipos + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"></CanonicalizationMethod>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"></SignatureMethod>`)
	for _, ref := range doc.FindElements("//Reference") {
		sb.WriteString(`<Reference URI="` + ref.SelectAttrValue("URI", "") + `"><Transforms>`)
		sb.WriteString(`<Transform Algorithm="` + TransformEnveloped + `"></Transform>`)
		sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"></Transform></Transforms>`)
		sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"></DigestMethod>`)
		sb.WriteString(`<DigestValue>` + ref.FindElement("./DigestValue").Text() + `</DigestValue></Reference>`)
	}
	sb.WriteString(`</SignedInfo>`)

	hash := sha256.Sum256([]byte(sb.String()))
	sig, err := base64.StdEncoding.DecodeString(doc.FindElement("//SignatureValue").Text())
	require.NoError(t, err)
	pub := cert.Leaf.PublicKey.(*rsa.PublicKey)
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], sig), "SignatureValue sobre el SignedInfo en contexto")
	assert.NoError(t, nfsetest.VerifyEnveloped(out, pub))
}

func TestSign_SinElementosId(t *testing.T) {
	cert := testCertificate(t, time.Now().AddDate(1, 0, 0))
	consulta := `<ConsultarLoteRpsEnvio xmlns="http://nfse.abrasf.org.br"><Protocolo>1</Protocolo></ConsultarLoteRpsEnvio>`
	_, err := NewDigitalSignatureService().Sign([]byte(consulta), cert)
	assert.ErrorIs(t, err, domain.ErrNoSignableElements)
}

func TestSign_XMLInvalido(t *testing.T) {
	cert := testCertificate(t, time.Now().AddDate(1, 0, 0))
	_, err := NewDigitalSignatureService().Sign([]byte("<a><b></a>"), cert)
	assert.Error(t, err)
	_, err = NewDigitalSignatureService().Sign(nil, cert)
	assert.Error(t, err)
}

func TestSign_LlaveNoRSA(t *testing.T) {
	_, err := NewDigitalSignatureService().Sign([]byte(loteXML), tls.Certificate{})
	assert.Error(t, err)
}

func TestLoadFromPFX_Invalido(t *testing.T) {
	_, err := LoadFromPFX([]byte("no es un pfx"), "senha")
	assert.ErrorIs(t, err, domain.ErrCertificateDecode)

	_, err = LoadFromPFX(nil, "")
	assert.ErrorIs(t, err, domain.ErrCertificateDecode)
}

func TestInfo(t *testing.T) {
	notAfter := time.Now().AddDate(0, 6, 0).Truncate(time.Second)
	info, err := Info(testCertificate(t, notAfter))
	require.NoError(t, err)
	assert.Equal(t, "EMPRESA TESTE LTDA:12345678000100", info.Titular)
	assert.True(t, info.Validade.Equal(notAfter.UTC()))
	assert.Equal(t, "1092", info.Serial, "4242 en hexadecimal")
}

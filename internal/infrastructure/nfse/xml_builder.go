// Package nfse implementa el pipeline de documentos ABRASF: ensamblado del XML,
// re-namespacing del XML directo, transporte SOAP con mTLS y normalización de respuestas.
package nfse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

// XMLBuilder construye los documentos de envío ABRASF (sin firma).
// El namespace del documento lo define el proveedor del municipio.
// La salida es determinista: mismo input, mismos bytes.
type XMLBuilder struct {
	namespace string
	versao    string
}

// NewXMLBuilder crea el ensamblador para el namespace y versión del layout.
func NewXMLBuilder(namespace, versao string) *XMLBuilder {
	if versao == "" {
		versao = abrasf.VersaoAbrasf
	}
	return &XMLBuilder{namespace: namespace, versao: versao}
}

// ── Documentos por operación ────────────────────────────────────────────────

// BuildGerarNfse genera <GerarNfseEnvio> con un único RPS.
func (b *XMLBuilder) BuildGerarNfse(req dom.GerarNfseRequest, p dom.Prestador) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot("GerarNfseEnvio")
	b.writeRps(w, req.Rps, p)
	w.closeRoot("GerarNfseEnvio")
	return w.bytes()
}

// BuildEnviarLoteRps genera <EnviarLoteRpsEnvio> (o la variante síncrona) con el lote Id="lote{NumeroLote}".
// QuantidadeRps se deriva siempre del tamaño de la lista.
func (b *XMLBuilder) BuildEnviarLoteRps(req dom.EnviarLoteRpsRequest, p dom.Prestador, sincrono bool) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	root := "EnviarLoteRpsEnvio"
	if sincrono {
		root = "EnviarLoteRpsSincronoEnvio"
	}
	w := b.newWriter()
	w.openRoot(root)
	w.open("LoteRps", attr("Id", "lote"+req.NumeroLote), attr("versao", b.versao))
	w.leaf("NumeroLote", req.NumeroLote)
	w.open("CpfCnpj")
	w.leaf("Cnpj", abrasf.NormalizeDocumento(p.Cnpj))
	w.close("CpfCnpj")
	w.leaf("InscricaoMunicipal", p.InscricaoMunicipal)
	w.leaf("QuantidadeRps", strconv.Itoa(req.QuantidadeRps()))
	w.open("ListaRps")
	for _, rps := range req.ListaRps {
		b.writeRps(w, rps, p)
	}
	w.close("ListaRps")
	w.close("LoteRps")
	w.closeRoot(root)
	return w.bytes()
}

// BuildConsultarSituacaoLoteRps genera <ConsultarSituacaoLoteRpsEnvio>.
func (b *XMLBuilder) BuildConsultarSituacaoLoteRps(protocolo string, p dom.Prestador) ([]byte, error) {
	return b.buildConsultaProtocolo("ConsultarSituacaoLoteRpsEnvio", protocolo, p)
}

// BuildConsultarLoteRps genera <ConsultarLoteRpsEnvio>.
func (b *XMLBuilder) BuildConsultarLoteRps(protocolo string, p dom.Prestador) ([]byte, error) {
	return b.buildConsultaProtocolo("ConsultarLoteRpsEnvio", protocolo, p)
}

func (b *XMLBuilder) buildConsultaProtocolo(root, protocolo string, p dom.Prestador) ([]byte, error) {
	if err := dom.ValidateProtocolo(protocolo); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot(root)
	writePrestador(w, p)
	w.leaf("Protocolo", protocolo)
	w.closeRoot(root)
	return w.bytes()
}

// BuildConsultarNfsePorRps genera <ConsultarNfsePorRpsEnvio>.
func (b *XMLBuilder) BuildConsultarNfsePorRps(req dom.ConsultarNfsePorRpsRequest, p dom.Prestador) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot("ConsultarNfsePorRpsEnvio")
	writeIdentificacaoRps(w, req.IdentificacaoRps)
	writePrestador(w, p)
	w.closeRoot("ConsultarNfsePorRpsEnvio")
	return w.bytes()
}

// BuildConsultarNfseServicoPrestado genera <ConsultarNfseServicoPrestadoEnvio> para la página pedida (default 1).
func (b *XMLBuilder) BuildConsultarNfseServicoPrestado(req dom.ConsultarNfseRequest, p dom.Prestador) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot("ConsultarNfseServicoPrestadoEnvio")
	writePrestador(w, p)
	if req.NumeroNfse != nil {
		w.leaf("NumeroNfse", strconv.FormatInt(*req.NumeroNfse, 10))
	}
	if req.DataInicial != nil || req.DataFinal != nil {
		w.open("PeriodoEmissao")
		if req.DataInicial != nil {
			w.leaf("DataInicial", formatDate(req.DataInicial.Time))
		}
		if req.DataFinal != nil {
			w.leaf("DataFinal", formatDate(req.DataFinal.Time))
		}
		w.close("PeriodoEmissao")
	}
	if t := req.Tomador; t != nil && (t.CpfCnpj != "" || t.InscricaoMunicipal != "") {
		w.open("Tomador")
		writeCpfCnpj(w, t.CpfCnpj)
		w.optional("InscricaoMunicipal", t.InscricaoMunicipal)
		w.close("Tomador")
	}
	if i := req.Intermediario; i != nil && (i.CpfCnpj != "" || i.InscricaoMunicipal != "") {
		w.open("Intermediario")
		writeCpfCnpj(w, i.CpfCnpj)
		w.optional("InscricaoMunicipal", i.InscricaoMunicipal)
		w.close("Intermediario")
	}
	w.leaf("Pagina", strconv.Itoa(req.PaginaOrDefault()))
	w.closeRoot("ConsultarNfseServicoPrestadoEnvio")
	return w.bytes()
}

// BuildCancelarNfse genera <CancelarNfseEnvio> con el pedido Id="cancel{Numero}".
func (b *XMLBuilder) BuildCancelarNfse(req dom.CancelarNfseRequest, p dom.Prestador) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot("CancelarNfseEnvio")
	writePedidoCancelamento(w, req.NumeroNfse, req.CodigoCancelamento, p)
	w.closeRoot("CancelarNfseEnvio")
	return w.bytes()
}

// BuildSubstituirNfse genera <SubstituirNfseEnvio>: pedido de cancelación de la nota sustituida + RPS sustituto.
func (b *XMLBuilder) BuildSubstituirNfse(req dom.SubstituirNfseRequest, p dom.Prestador) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := b.newWriter()
	w.openRoot("SubstituirNfseEnvio")
	w.open("SubstituicaoNfse")
	writePedidoCancelamento(w, req.NumeroNfseSubstituida, req.CodigoCancelamento, p)
	b.writeRps(w, req.RpsSubstituto, p)
	w.close("SubstituicaoNfse")
	w.closeRoot("SubstituirNfseEnvio")
	return w.bytes()
}

// ── Bloques ─────────────────────────────────────────────────────────────────

func (b *XMLBuilder) writeRps(w *xmlWriter, rps dom.Rps, p dom.Prestador) {
	inf := rps.InfDeclaracaoPrestacaoServico
	competencia := inf.DataEmissao
	if inf.Competencia != nil && !inf.Competencia.IsZero() {
		competencia = *inf.Competencia
	}

	w.open("Rps")
	w.open("InfDeclaracaoPrestacaoServico", attr("Id", rps.ID()))

	w.open("Rps")
	writeIdentificacaoRps(w, inf.Identificacao)
	w.leaf("DataEmissao", formatDate(inf.DataEmissao.Time))
	w.leaf("Status", "1") // 1-Normal
	w.close("Rps")

	w.leaf("Competencia", formatDate(competencia.Time))
	writeServico(w, inf.Servico)
	writePrestador(w, p)
	if inf.Tomador != nil {
		writeTomador(w, inf.Tomador)
	}
	w.leaf("OptanteSimplesNacional", strconv.Itoa(inf.OptanteSimplesNacional))
	w.leaf("IncentivoFiscal", strconv.Itoa(inf.IncentivadorCultural))
	if inf.Intermediario != nil {
		writeIntermediario(w, inf.Intermediario)
	}
	if c := inf.ConstrucaoCivil; c != nil {
		w.open("ConstrucaoCivil")
		w.optional("CodigoObra", c.CodigoObra)
		w.optional("Art", c.Art)
		w.close("ConstrucaoCivil")
	}

	w.close("InfDeclaracaoPrestacaoServico")
	w.close("Rps")
}

func writeIdentificacaoRps(w *xmlWriter, id dom.IdentificacaoRps) {
	w.open("IdentificacaoRps")
	w.leaf("Numero", strconv.FormatInt(id.Numero, 10))
	w.leaf("Serie", id.Serie)
	w.leaf("Tipo", strconv.Itoa(id.TipoOrDefault()))
	w.close("IdentificacaoRps")
}

func writeServico(w *xmlWriter, s dom.DadosServico) {
	v := s.Valores
	w.open("Servico")

	w.open("Valores")
	w.leaf("ValorServicos", formatDecimal(v.ValorServicos))
	w.optionalDecimal("ValorDeducoes", v.ValorDeducoes)
	w.optionalDecimal("ValorPis", v.ValorPis)
	w.optionalDecimal("ValorCofins", v.ValorCofins)
	w.optionalDecimal("ValorInss", v.ValorInss)
	w.optionalDecimal("ValorIr", v.ValorIr)
	w.optionalDecimal("ValorCsll", v.ValorCsll)
	w.optionalDecimal("OutrasRetencoes", v.OutrasRetencoes)
	w.optionalDecimal("ValTotTributos", v.ValTotTributos)
	w.optionalDecimal("ValorIss", v.ValorIss)
	if v.Aliquota != nil {
		w.leaf("Aliquota", formatRate(*v.Aliquota))
	}
	w.optionalDecimal("DescontoIncondicionado", v.DescontoIncondicionado)
	w.optionalDecimal("DescontoCondicionado", v.DescontoCondicionado)
	writeTrib(w, v.Trib)
	writeIBSCBS(w, v.IBSCBS, s.CodigoMunicipio)
	w.close("Valores")

	w.optionalInt("IssRetido", v.IssRetido)
	w.optionalInt("ResponsavelRetencao", v.ResponsavelRetencao)
	w.leaf("ItemListaServico", s.ItemListaServico)
	w.optional("CodigoCnae", s.CodigoCnae)
	w.optional("CodigoTributacaoMunicipio", s.CodigoTributacaoMunicipio)
	w.leaf("CodigoNbs", s.CodigoNbs)
	w.leaf("Discriminacao", s.Discriminacao)
	w.leaf("CodigoMunicipio", s.CodigoMunicipio)
	w.optional("CodigoPais", s.CodigoPais)
	w.optionalInt("ExigibilidadeISS", s.ExigibilidadeISS)
	w.optional("IdentifNaoExigibilidade", s.IdentifNaoExigibilidade)
	w.optional("MunicipioIncidencia", s.MunicipioIncidencia)
	w.optional("NumeroProcesso", s.NumeroProcesso)
	if s.ComExt != nil {
		writeComercioExterior(w, s.ComExt)
	}

	w.close("Servico")
}

// writeTrib emite <trib>. totTrib es una unión: pTotTrib (por esfera) o pTotTribSN, nunca ambos.
func writeTrib(w *xmlWriter, t dom.InfoTributacao) {
	w.open("trib")
	if t.TribFed != nil && t.TribFed.PisCofins != nil {
		pc := t.TribFed.PisCofins
		w.open("tribFed")
		w.open("piscofins")
		w.leaf("CST", or(pc.CST, "00"))
		w.optionalDecimal("vBCPisCofins", pc.VBCPisCofins)
		w.optionalDecimal("pAliqPis", pc.PAliqPis)
		w.optionalDecimal("pAliqCofins", pc.PAliqCofins)
		w.optionalDecimal("vPis", pc.VPis)
		w.optionalDecimal("vCofins", pc.VCofins)
		w.optional("tpRetPisCofins", pc.TpRetPisCofins)
		w.close("piscofins")
		w.close("tribFed")
	}

	w.open("totTrib")
	if t.TotTrib.PorEsfera() {
		pt := t.TotTrib.PTotTrib
		w.open("pTotTrib")
		w.leaf("pTotTribFed", formatDecimal(pt.PTotTribFed))
		w.leaf("pTotTribEst", formatDecimal(pt.PTotTribEst))
		w.leaf("pTotTribMun", formatDecimal(pt.PTotTribMun))
		w.close("pTotTrib")
	} else {
		sn := decimal.Zero
		if t.TotTrib.PTotTribSN != nil {
			sn = *t.TotTrib.PTotTribSN
		}
		w.leaf("pTotTribSN", formatDecimal(sn))
	}
	w.close("totTrib")
	w.close("trib")
}

func writeIBSCBS(w *xmlWriter, ib dom.InfoIBSCBS, codigoMunicipio string) {
	w.open("IBSCBS")
	w.leaf("finNFSe", or(ib.FinNFSe, "0"))
	w.leaf("indFinal", or(ib.IndFinal, "0"))
	w.leaf("cIndOp", or(ib.CIndOp, "000000"))
	w.optional("tpOper", ib.TpOper)
	if len(ib.RefNFSe) > 0 {
		w.open("gRefNFSe")
		for _, ref := range ib.RefNFSe {
			w.leaf("refNFSe", ref)
		}
		w.close("gRefNFSe")
	}
	w.optional("tpEnteGov", ib.TpEnteGov)
	w.leaf("indDest", or(ib.IndDest, "0"))

	val := ib.Valores
	w.open("valores")
	w.open("trib")
	w.open("gIBSCBS")
	w.leaf("CST", or(val.Trib.GIBSCBS.CST, "000"))
	w.leaf("cClassTrib", or(val.Trib.GIBSCBS.CClassTrib, "000000"))
	w.close("gIBSCBS")
	w.close("trib")
	w.leaf("cLocalidadeIncid", or(val.CLocalidadeIncid, codigoMunicipio))
	w.leaf("pRedutor", formatDecimal(val.PRedutor))
	w.optionalDecimal("vBC", val.VBC)
	w.close("valores")
	w.close("IBSCBS")
}

func writeComercioExterior(w *xmlWriter, c *dom.ComercioExterior) {
	w.open("comExt")
	w.leaf("mdPrestacao", or(c.MdPrestacao, "0"))
	w.leaf("vincPrest", or(c.VincPrest, "0"))
	w.leaf("tpMoeda", or(c.TpMoeda, "790"))
	w.leaf("vServMoeda", formatDecimal(c.VServMoeda))
	w.leaf("mecAFComexP", or(c.MecAFComexP, "01"))
	w.leaf("mecAFComexT", or(c.MecAFComexT, "01"))
	w.leaf("movTempBens", or(c.MovTempBens, "1"))
	w.optional("nDI", c.NDI)
	w.optional("nRE", c.NRE)
	w.leaf("mdic", or(c.Mdic, "0"))
	w.close("comExt")
}

func writePrestador(w *xmlWriter, p dom.Prestador) {
	w.open("Prestador")
	w.open("CpfCnpj")
	w.leaf("Cnpj", abrasf.NormalizeDocumento(p.Cnpj))
	w.close("CpfCnpj")
	w.leaf("InscricaoMunicipal", p.InscricaoMunicipal)
	w.close("Prestador")
}

// writeCpfCnpj emite <CpfCnpj> con <Cpf> si el documento normalizado tiene 11 dígitos, si no <Cnpj>.
// Un documento vacío deja el contenedor vacío.
func writeCpfCnpj(w *xmlWriter, doc string) {
	w.open("CpfCnpj")
	if n := abrasf.NormalizeDocumento(doc); n != "" {
		w.leaf(abrasf.DocumentoTag(n), n)
	}
	w.close("CpfCnpj")
}

func writeTomador(w *xmlWriter, t *dom.DadosTomador) {
	w.open("Tomador")
	if t.Identificacao != nil {
		w.open("IdentificacaoTomador")
		writeCpfCnpj(w, t.Identificacao.CpfCnpj)
		w.optional("InscricaoMunicipal", t.Identificacao.InscricaoMunicipal)
		w.close("IdentificacaoTomador")
	}
	w.optional("RazaoSocial", t.RazaoSocial)
	if e := t.Endereco; e != nil {
		w.open("Endereco")
		w.optional("Endereco", e.Logradouro)
		w.optional("Numero", e.Numero)
		w.optional("Complemento", e.Complemento)
		w.optional("Bairro", e.Bairro)
		w.optional("CodigoMunicipio", e.CodigoMunicipio)
		w.optional("Uf", e.Uf)
		w.optional("Cep", stripHyphen(e.Cep))
		w.close("Endereco")
	}
	if c := t.Contato; c != nil {
		w.open("Contato")
		w.optional("Telefone", c.Telefone)
		w.optional("Email", c.Email)
		w.close("Contato")
	}
	w.close("Tomador")
}

func writeIntermediario(w *xmlWriter, i *dom.IdentificacaoIntermediario) {
	w.open("Intermediario")
	w.open("IdentificacaoIntermediario")
	writeCpfCnpj(w, i.CpfCnpj)
	w.optional("InscricaoMunicipal", i.InscricaoMunicipal)
	w.close("IdentificacaoIntermediario")
	w.optional("RazaoSocial", i.RazaoSocial)
	w.close("Intermediario")
}

func writePedidoCancelamento(w *xmlWriter, numero int64, codigo string, p dom.Prestador) {
	n := strconv.FormatInt(numero, 10)
	w.open("Pedido")
	w.open("InfPedidoCancelamento", attr("Id", "cancel"+n))
	w.open("IdentificacaoNfse")
	w.leaf("Numero", n)
	w.open("CpfCnpj")
	w.leaf("Cnpj", abrasf.NormalizeDocumento(p.Cnpj))
	w.close("CpfCnpj")
	w.leaf("InscricaoMunicipal", p.InscricaoMunicipal)
	w.leaf("CodigoMunicipio", p.CodigoMunicipio)
	w.close("IdentificacaoNfse")
	w.leaf("CodigoCancelamento", codigo)
	w.close("InfPedidoCancelamento")
	w.close("Pedido")
}

// ── Escritor ────────────────────────────────────────────────────────────────

// xmlWriter envuelve xml.Encoder guardando el primer error. Solo la raíz declara
// el namespace (xmlns por defecto); los hijos lo heredan.
type xmlWriter struct {
	buf bytes.Buffer
	enc *xml.Encoder
	ns  string
	err error
}

func (b *XMLBuilder) newWriter() *xmlWriter {
	w := &xmlWriter{ns: b.namespace}
	w.enc = xml.NewEncoder(&w.buf)
	return w
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(t)
}

func (w *xmlWriter) openRoot(local string) {
	w.token(xml.StartElement{
		Name: xml.Name{Local: local},
		Attr: []xml.Attr{attr("xmlns", w.ns)},
	})
}

func (w *xmlWriter) closeRoot(local string) { w.close(local) }

func (w *xmlWriter) open(local string, attrs ...xml.Attr) {
	w.token(xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs})
}

func (w *xmlWriter) close(local string) {
	w.token(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) leaf(local, value string) {
	w.open(local)
	w.token(xml.CharData(value))
	w.close(local)
}

// optional emite el elemento solo si value no está vacío.
func (w *xmlWriter) optional(local, value string) {
	if value != "" {
		w.leaf(local, value)
	}
}

func (w *xmlWriter) optionalDecimal(local string, d *decimal.Decimal) {
	if d != nil {
		w.leaf(local, formatDecimal(*d))
	}
}

func (w *xmlWriter) optionalInt(local string, i *int) {
	if i != nil {
		w.leaf(local, strconv.Itoa(*i))
	}
}

func (w *xmlWriter) bytes() ([]byte, error) {
	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return nil, fmt.Errorf("nfse: ensamblar xml: %w", w.err)
	}
	return w.buf.Bytes(), nil
}

// ── Formato ─────────────────────────────────────────────────────────────────

// formatDecimal montos con 2 decimales y punto como separador.
func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// formatRate alícuotas con 4 decimales.
func formatRate(d decimal.Decimal) string {
	return d.Round(4).StringFixed(4)
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func stripHyphen(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// Package nfse contiene los tipos de dominio del padrón ABRASF 2.04: las
// solicitudes estructuradas que recibe el pipeline y los resultados canónicos
// que devuelve, independientes del proveedor (prefeitura) de destino.
package nfse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Data fecha que acepta "2006-01-02" o RFC3339 en JSON y se serializa como fecha ISO.
type Data struct {
	time.Time
}

// NewData construye una Data a partir de un time.Time.
func NewData(t time.Time) Data { return Data{Time: t} }

// UnmarshalJSON acepta fecha corta o timestamp completo.
func (d *Data) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("data inválida %q: use AAAA-MM-DD", s)
}

// MarshalJSON serializa la fecha como AAAA-MM-DD.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

// =============================================================================
// Tributos federais e IBS/CBS (Reforma Tributária)
// =============================================================================

// InfoTributacao bloque <trib>: PIS/COFINS opcional y total aproximado de tributos obligatorio.
type InfoTributacao struct {
	TribFed *TributosFederais `json:"trib_fed,omitempty"`
	TotTrib TotalTributos     `json:"tot_trib"`
}

type TributosFederais struct {
	PisCofins *PisCofins `json:"piscofins,omitempty"`
}

type PisCofins struct {
	CST            string           `json:"cst"` // default "00"
	VBCPisCofins   *decimal.Decimal `json:"vbc_pis_cofins,omitempty"`
	PAliqPis       *decimal.Decimal `json:"p_aliq_pis,omitempty"`
	PAliqCofins    *decimal.Decimal `json:"p_aliq_cofins,omitempty"`
	VPis           *decimal.Decimal `json:"v_pis,omitempty"`
	VCofins        *decimal.Decimal `json:"v_cofins,omitempty"`
	TpRetPisCofins string           `json:"tp_ret_pis_cofins,omitempty"`
}

// TotalTributos unión de dos formas: percentual por esfera (PTotTrib) o percentual
// único del Simples Nacional (PTotTribSN). Solo una se emite.
type TotalTributos struct {
	// UsaPercentualSeparado nil equivale a true.
	UsaPercentualSeparado *bool                 `json:"usa_percentual_separado,omitempty"`
	PTotTrib              *TotalTributosPercent `json:"p_tot_trib,omitempty"`
	PTotTribSN            *decimal.Decimal      `json:"p_tot_trib_sn,omitempty"`
}

// PorEsfera indica si debe emitirse la forma percentual por esfera (federal/estadual/municipal).
func (t TotalTributos) PorEsfera() bool {
	separado := t.UsaPercentualSeparado == nil || *t.UsaPercentualSeparado
	return separado && t.PTotTrib != nil
}

type TotalTributosPercent struct {
	PTotTribFed decimal.Decimal `json:"p_tot_trib_fed"`
	PTotTribEst decimal.Decimal `json:"p_tot_trib_est"`
	PTotTribMun decimal.Decimal `json:"p_tot_trib_mun"`
}

// InfoIBSCBS bloque obligatorio de la reforma tributaria.
type InfoIBSCBS struct {
	FinNFSe   string        `json:"fin_nfse"`  // default "0"
	IndFinal  string        `json:"ind_final"` // default "0"
	CIndOp    string        `json:"c_ind_op"`  // default "000000"
	TpOper    string        `json:"tp_oper,omitempty"`
	RefNFSe   []string      `json:"ref_nfse,omitempty"`
	TpEnteGov string        `json:"tp_ente_gov,omitempty"`
	IndDest   string        `json:"ind_dest"` // default "0"
	Valores   ValoresIBSCBS `json:"valores"`
}

type ValoresIBSCBS struct {
	GReeRepRes       *InfoReeRepRes   `json:"g_ree_rep_res,omitempty"`
	Trib             TributosIBSCBS   `json:"trib"`
	CLocalidadeIncid string           `json:"c_localidade_incid,omitempty"` // vacío = servico.codigo_municipio
	PRedutor         decimal.Decimal  `json:"p_redutor"`
	VBC              *decimal.Decimal `json:"v_bc,omitempty"`
}

type TributosIBSCBS struct {
	GIBSCBS SituacaoClassificacaoIBSCBS `json:"g_ibscbs"`
}

// SituacaoClassificacaoIBSCBS par de clasificación: CST de 3 dígitos y cClassTrib de 6.
type SituacaoClassificacaoIBSCBS struct {
	CST        string `json:"cst"`          // default "000"
	CClassTrib string `json:"c_class_trib"` // default "000000"
}

// InfoReeRepRes documentos de reembolso/repasse/ressarcimento. Se acepta en la
// solicitud pero el layout GISS 2.04 no lo transmite.
type InfoReeRepRes struct {
	Documentos []DocumentoReeRepRes `json:"documentos"`
}

type DocumentoReeRepRes struct {
	TpReeRepRes  string          `json:"tp_ree_rep_res"` // default "99"
	VlrReeRepRes decimal.Decimal `json:"vlr_ree_rep_res"`
}

// =============================================================================
// Comércio exterior
// =============================================================================

type ComercioExterior struct {
	MdPrestacao string          `json:"md_prestacao"` // default "0"
	VincPrest   string          `json:"vinc_prest"`   // default "0"
	TpMoeda     string          `json:"tp_moeda"`     // default "790" (BRL)
	VServMoeda  decimal.Decimal `json:"v_serv_moeda"`
	MecAFComexP string          `json:"mec_af_comex_p"` // default "01"
	MecAFComexT string          `json:"mec_af_comex_t"` // default "01"
	MovTempBens string          `json:"mov_temp_bens"`  // default "1"
	NDI         string          `json:"n_di,omitempty"`
	NRE         string          `json:"n_re,omitempty"`
	Mdic        string          `json:"mdic"` // default "0"
}

// =============================================================================
// Identificação
// =============================================================================

type IdentificacaoRps struct {
	Numero int64  `json:"numero"`
	Serie  string `json:"serie"`
	Tipo   int    `json:"tipo"` // 1-RPS, 2-Nota Fiscal Conjugada, 3-Cupom; 0 = 1
}

// TipoOrDefault devuelve Tipo o 1 cuando no se informó.
func (i IdentificacaoRps) TipoOrDefault() int {
	if i.Tipo == 0 {
		return 1
	}
	return i.Tipo
}

type IdentificacaoTomador struct {
	CpfCnpj            string `json:"cpf_cnpj,omitempty"`
	InscricaoMunicipal string `json:"inscricao_municipal,omitempty"`
}

type IdentificacaoIntermediario struct {
	CpfCnpj            string `json:"cpf_cnpj,omitempty"`
	InscricaoMunicipal string `json:"inscricao_municipal,omitempty"`
	RazaoSocial        string `json:"razao_social,omitempty"`
}

// =============================================================================
// Endereço, contato, tomador
// =============================================================================

type Endereco struct {
	Logradouro      string `json:"logradouro,omitempty"`
	Numero          string `json:"numero,omitempty"`
	Complemento     string `json:"complemento,omitempty"`
	Bairro          string `json:"bairro,omitempty"`
	CodigoMunicipio string `json:"codigo_municipio,omitempty"`
	Uf              string `json:"uf,omitempty"`
	Cep             string `json:"cep,omitempty"`
}

type Contato struct {
	Telefone string `json:"telefone,omitempty"`
	Email    string `json:"email,omitempty"`
}

type DadosTomador struct {
	Identificacao *IdentificacaoTomador `json:"identificacao,omitempty"`
	RazaoSocial   string                `json:"razao_social,omitempty"`
	Endereco      *Endereco             `json:"endereco,omitempty"`
	Contato       *Contato              `json:"contato,omitempty"`
}

// =============================================================================
// Serviço e valores
// =============================================================================

type DadosServico struct {
	Valores                   ValoresServico    `json:"valores"`
	ItemListaServico          string            `json:"item_lista_servico"`
	CodigoCnae                string            `json:"codigo_cnae,omitempty"`
	CodigoTributacaoMunicipio string            `json:"codigo_tributacao_municipio,omitempty"`
	CodigoNbs                 string            `json:"codigo_nbs"`
	Discriminacao             string            `json:"discriminacao"`
	CodigoMunicipio           string            `json:"codigo_municipio"`
	CodigoPais                string            `json:"codigo_pais,omitempty"`
	ExigibilidadeISS          *int              `json:"exigibilidade_iss,omitempty"`
	IdentifNaoExigibilidade   string            `json:"identif_nao_exigibilidade,omitempty"`
	MunicipioIncidencia       string            `json:"municipio_incidencia,omitempty"`
	NumeroProcesso            string            `json:"numero_processo,omitempty"`
	ComExt                    *ComercioExterior `json:"com_ext,omitempty"`
}

// ValoresServico montos del servicio. Los punteros nil no se emiten en el XML.
type ValoresServico struct {
	ValorServicos          decimal.Decimal  `json:"valor_servicos"`
	ValorDeducoes          *decimal.Decimal `json:"valor_deducoes,omitempty"`
	ValorPis               *decimal.Decimal `json:"valor_pis,omitempty"`
	ValorCofins            *decimal.Decimal `json:"valor_cofins,omitempty"`
	ValorInss              *decimal.Decimal `json:"valor_inss,omitempty"`
	ValorIr                *decimal.Decimal `json:"valor_ir,omitempty"`
	ValorCsll              *decimal.Decimal `json:"valor_csll,omitempty"`
	OutrasRetencoes        *decimal.Decimal `json:"outras_retencoes,omitempty"`
	ValTotTributos         *decimal.Decimal `json:"val_tot_tributos,omitempty"`
	ValorIss               *decimal.Decimal `json:"valor_iss,omitempty"`
	Aliquota               *decimal.Decimal `json:"aliquota,omitempty"`
	DescontoIncondicionado *decimal.Decimal `json:"desconto_incondicionado,omitempty"`
	DescontoCondicionado   *decimal.Decimal `json:"desconto_condicionado,omitempty"`
	IssRetido              *int             `json:"iss_retido,omitempty"`           // 1-Sim, 2-Não
	ResponsavelRetencao    *int             `json:"responsavel_retencao,omitempty"` // 1-Tomador, 2-Intermediário
	ValorLiquidoNfse       *decimal.Decimal `json:"valor_liquido_nfse,omitempty"`
	BaseCalculo            *decimal.Decimal `json:"base_calculo,omitempty"`
	Trib                   InfoTributacao   `json:"trib"`
	IBSCBS                 InfoIBSCBS       `json:"ibscbs"`
}

type DadosConstrucaoCivil struct {
	CodigoObra string `json:"codigo_obra,omitempty"`
	Art        string `json:"art,omitempty"`
}

// =============================================================================
// RPS
// =============================================================================

type InfRps struct {
	Identificacao            IdentificacaoRps            `json:"identificacao"`
	DataEmissao              Data                        `json:"data_emissao"`
	NaturezaOperacao         int                         `json:"natureza_operacao,omitempty"`
	RegimeEspecialTributacao *int                        `json:"regime_especial_tributacao,omitempty"`
	OptanteSimplesNacional   int                         `json:"optante_simples_nacional"` // 1-Sim, 2-Não
	IncentivadorCultural     int                         `json:"incentivador_cultural"`    // 1-Sim, 2-Não
	Competencia              *Data                       `json:"competencia,omitempty"`
	Servico                  DadosServico                `json:"servico"`
	Tomador                  *DadosTomador               `json:"tomador,omitempty"`
	Intermediario            *IdentificacaoIntermediario `json:"intermediario,omitempty"`
	ConstrucaoCivil          *DadosConstrucaoCivil       `json:"construcao_civil,omitempty"`
}

// Rps documento provisorio que la prefeitura convierte en NFSe.
type Rps struct {
	InfDeclaracaoPrestacaoServico InfRps `json:"inf_declaracao_prestacao_servico"`
}

// ID identificador sintético "rps{Serie}{Numero}" que firma el motor de firma.
func (r Rps) ID() string {
	id := r.InfDeclaracaoPrestacaoServico.Identificacao
	return fmt.Sprintf("rps%s%d", id.Serie, id.Numero)
}

// =============================================================================
// Solicitudes
// =============================================================================

type GerarNfseRequest struct {
	Rps Rps `json:"rps"`
}

type EnviarLoteRpsRequest struct {
	NumeroLote string `json:"numero_lote"`
	ListaRps   []Rps  `json:"lista_rps"`
}

// QuantidadeRps siempre igual a len(ListaRps).
func (r EnviarLoteRpsRequest) QuantidadeRps() int { return len(r.ListaRps) }

type ConsultarNfsePorRpsRequest struct {
	IdentificacaoRps IdentificacaoRps `json:"identificacao_rps"`
}

type ConsultarNfseRequest struct {
	DataInicial   *Data                       `json:"data_inicial,omitempty"`
	DataFinal     *Data                       `json:"data_final,omitempty"`
	Tomador       *IdentificacaoTomador       `json:"tomador,omitempty"`
	Intermediario *IdentificacaoIntermediario `json:"intermediario,omitempty"`
	NumeroNfse    *int64                      `json:"numero_nfse,omitempty"`
	Pagina        int                         `json:"pagina"` // 0 = 1
}

// PaginaOrDefault devuelve Pagina o 1 cuando no se informó.
func (r ConsultarNfseRequest) PaginaOrDefault() int {
	if r.Pagina <= 0 {
		return 1
	}
	return r.Pagina
}

type CancelarNfseRequest struct {
	NumeroNfse         int64  `json:"numero_nfse"`
	CodigoCancelamento string `json:"codigo_cancelamento"`
}

type SubstituirNfseRequest struct {
	NumeroNfseSubstituida int64  `json:"numero_nfse_substituida"`
	CodigoCancelamento    string `json:"codigo_cancelamento"`
	RpsSubstituto         Rps    `json:"rps_substituto"`
}

// =============================================================================
// Resultado canónico
// =============================================================================

// MensagemRetorno entrada de falla (o aviso) devuelta por la prefeitura, tal cual.
type MensagemRetorno struct {
	Codigo   string `json:"codigo"`
	Mensagem string `json:"mensagem"`
	Correcao string `json:"correcao,omitempty"`
}

// NfseGerada documento emitido o consultado.
type NfseGerada struct {
	Numero            int64      `json:"numero"`
	CodigoVerificacao string     `json:"codigo_verificacao"`
	DataEmissao       *time.Time `json:"data_emissao,omitempty"`
	XmlNfse           string     `json:"xml_nfse,omitempty"`
	LinkVisualizacao  string     `json:"link_visualizacao,omitempty"`
}

// BaseResponse campos comunes a todas las operaciones.
// Sucesso es false siempre que hubo cualquier falla.
type BaseResponse struct {
	Sucesso    bool              `json:"sucesso"`
	Mensagens  []MensagemRetorno `json:"mensagens"`
	XmlEnviado string            `json:"xml_enviado,omitempty"`
	XmlRetorno string            `json:"xml_retorno,omitempty"`
}

// Fail marca la respuesta como fallida agregando una mensagem.
func (b *BaseResponse) Fail(codigo, mensagem string) {
	b.Sucesso = false
	b.Mensagens = append(b.Mensagens, MensagemRetorno{Codigo: codigo, Mensagem: mensagem})
}

// Base permite a la capa de aplicación tratar cualquier respuesta de forma uniforme.
func (b *BaseResponse) Base() *BaseResponse { return b }

type GerarNfseResponse struct {
	BaseResponse
	Nfse *NfseGerada `json:"nfse,omitempty"`
}

type EnviarLoteRpsResponse struct {
	BaseResponse
	NumeroLote      string     `json:"numero_lote,omitempty"`
	Protocolo       string     `json:"protocolo,omitempty"`
	DataRecebimento *time.Time `json:"data_recebimento,omitempty"`
}

type EnviarLoteRpsSincronoResponse struct {
	BaseResponse
	NumeroLote   string       `json:"numero_lote,omitempty"`
	NfsesGeradas []NfseGerada `json:"nfses_geradas"`
}

type ConsultarSituacaoLoteRpsResponse struct {
	BaseResponse
	Situacao          *int   `json:"situacao,omitempty"`
	DescricaoSituacao string `json:"descricao_situacao,omitempty"`
}

type ConsultarLoteRpsResponse struct {
	BaseResponse
	NfsesGeradas []NfseGerada `json:"nfses_geradas"`
}

type ConsultarNfsePorRpsResponse struct {
	BaseResponse
	Nfse *NfseGerada `json:"nfse,omitempty"`
}

type ConsultarNfseResponse struct {
	BaseResponse
	Nfses        []NfseGerada `json:"nfses"`
	TotalPaginas int          `json:"total_paginas"`
	PaginaAtual  int          `json:"pagina_atual"`
}

type CancelarNfseResponse struct {
	BaseResponse
	NumeroNfseCancelada *int64     `json:"numero_nfse_cancelada,omitempty"`
	DataCancelamento    *time.Time `json:"data_cancelamento,omitempty"`
}

type SubstituirNfseResponse struct {
	BaseResponse
	NumeroNfseCancelada *int64      `json:"numero_nfse_cancelada,omitempty"`
	NfseSubstituta      *NfseGerada `json:"nfse_substituta,omitempty"`
}

// Response lo implementa toda respuesta de operación.
type Response interface {
	Base() *BaseResponse
}

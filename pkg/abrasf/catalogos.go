// Package abrasf contiene catálogos y validaciones del padrón ABRASF de NFSe (versión 2.04)
// compartidos por el ensamblador de XML, el normalizador de respuestas y la capa HTTP.
package abrasf

// VersaoAbrasf versión del layout soportada por el pipeline.
const VersaoAbrasf = "2.04"

// =============================================================================
// Situación del lote RPS (ConsultarSituacaoLoteRps)
// =============================================================================

const (
	SituacaoNaoRecebido           = 1
	SituacaoNaoProcessado         = 2
	SituacaoProcessadoComErro     = 3
	SituacaoProcessadoComSucesso  = 4
	DescricaoSituacaoDesconhecida = "Desconhecido"
)

var situacaoDescricao = map[int]string{
	SituacaoNaoRecebido:          "Não Recebido",
	SituacaoNaoProcessado:        "Não Processado",
	SituacaoProcessadoComErro:    "Processado com Erro",
	SituacaoProcessadoComSucesso: "Processado com Sucesso",
}

// DescricaoSituacao traduce el código numérico de situación del lote.
// Un código no reconocido devuelve "Desconhecido" en lugar de fallar.
func DescricaoSituacao(codigo int) string {
	if d, ok := situacaoDescricao[codigo]; ok {
		return d
	}
	return DescricaoSituacaoDesconhecida
}

// =============================================================================
// Tipo de RPS
// =============================================================================

const (
	TipoRps                 = 1 // RPS
	TipoNotaFiscalConjugada = 2 // Nota Fiscal Conjugada (Mista)
	TipoCupom               = 3 // Cupom
)

// ValidTiposRps tipos de RPS aceptados en IdentificacaoRps/Tipo.
var ValidTiposRps = map[int]bool{TipoRps: true, TipoNotaFiscalConjugada: true, TipoCupom: true}

// =============================================================================
// Código de cancelamento
// =============================================================================

const (
	CancelamentoErroEmissao     = "1" // Erro na emissão
	CancelamentoServicoNaoPrest = "2" // Serviço não prestado
	CancelamentoErroAssinatura  = "3" // Erro de assinatura
	CancelamentoDuplicidade     = "4" // Duplicidade da nota
	CancelamentoErroProcessam   = "5" // Erro de processamento
)

// ValidCodigosCancelamento códigos de cancelamento aceptados por los proveedores ABRASF.
var ValidCodigosCancelamento = map[string]bool{
	CancelamentoErroEmissao:     true,
	CancelamentoServicoNaoPrest: true,
	CancelamentoErroAssinatura:  true,
	CancelamentoDuplicidade:     true,
	CancelamentoErroProcessam:   true,
}

// =============================================================================
// Exigibilidade do ISS
// =============================================================================

const (
	ExigibilidadeExigivel          = 1
	ExigibilidadeNaoIncidencia     = 2
	ExigibilidadeIsencao           = 3
	ExigibilidadeExportacao        = 4
	ExigibilidadeImunidade         = 5
	ExigibilidadeSuspensaJudicial  = 6
	ExigibilidadeSuspensaAdministr = 7
)

// =============================================================================
// Sim / Não (OptanteSimplesNacional, IncentivoFiscal, IssRetido)
// =============================================================================

const (
	Sim = 1
	Nao = 2
)

// ValidSimNao valores aceptados en los campos Sim/Não del layout.
var ValidSimNao = map[int]bool{Sim: true, Nao: true}

// =============================================================================
// Responsável pela retenção
// =============================================================================

const (
	ResponsavelTomador       = 1
	ResponsavelIntermediario = 2
)

// =============================================================================
// Tipo de ambiente (campo Tipo_Ambiente de la empresa)
// =============================================================================

const (
	AmbienteProducao    = "1"
	AmbienteHomologacao = "2"
)

package nfse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

var (
	reCST3       = regexp.MustCompile(`^\d{3}$`)
	reClassTrib6 = regexp.MustCompile(`^\d{6}$`)
	reMunicipio7 = regexp.MustCompile(`^\d{7}$`)
)

// ValidationError lista de campos inválidos detectados antes de cualquier llamada de red.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrValidation.Error(), strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

type validator struct {
	fields []string
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.fields = append(v.fields, fmt.Sprintf(format, args...))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// ValidateRps valida los campos obligatorios de un RPS.
func ValidateRps(rps Rps) error {
	v := &validator{}
	validateRps(v, "rps", rps)
	return v.err()
}

func validateRps(v *validator, path string, rps Rps) {
	inf := rps.InfDeclaracaoPrestacaoServico
	v.check(inf.Identificacao.Numero > 0, "%s.identificacao.numero obrigatório", path)
	v.check(strings.TrimSpace(inf.Identificacao.Serie) != "", "%s.identificacao.serie obrigatória", path)
	v.check(abrasf.ValidTiposRps[inf.Identificacao.TipoOrDefault()], "%s.identificacao.tipo inválido (%d)", path, inf.Identificacao.Tipo)
	v.check(!inf.DataEmissao.IsZero(), "%s.data_emissao obrigatória", path)
	v.check(abrasf.ValidSimNao[inf.OptanteSimplesNacional], "%s.optante_simples_nacional deve ser 1 ou 2", path)
	v.check(abrasf.ValidSimNao[inf.IncentivadorCultural], "%s.incentivador_cultural deve ser 1 ou 2", path)

	s := inf.Servico
	v.check(s.Valores.ValorServicos.IsPositive(), "%s.servico.valores.valor_servicos deve ser maior que zero", path)
	v.check(strings.TrimSpace(s.ItemListaServico) != "", "%s.servico.item_lista_servico obrigatório", path)
	v.check(strings.TrimSpace(s.CodigoNbs) != "", "%s.servico.codigo_nbs obrigatório", path)
	v.check(strings.TrimSpace(s.Discriminacao) != "", "%s.servico.discriminacao obrigatória", path)
	v.check(reMunicipio7.MatchString(s.CodigoMunicipio), "%s.servico.codigo_municipio deve ter 7 dígitos", path)
	if s.Valores.IssRetido != nil {
		v.check(abrasf.ValidSimNao[*s.Valores.IssRetido], "%s.servico.valores.iss_retido deve ser 1 ou 2", path)
	}
	if s.ExigibilidadeISS != nil {
		v.check(*s.ExigibilidadeISS >= abrasf.ExigibilidadeExigivel && *s.ExigibilidadeISS <= abrasf.ExigibilidadeSuspensaAdministr,
			"%s.servico.exigibilidade_iss inválida (%d)", path, *s.ExigibilidadeISS)
	}

	g := s.Valores.IBSCBS.Valores.Trib.GIBSCBS
	v.check(g.CST == "" || reCST3.MatchString(g.CST), "%s.servico.valores.ibscbs CST deve ter 3 dígitos", path)
	v.check(g.CClassTrib == "" || reClassTrib6.MatchString(g.CClassTrib), "%s.servico.valores.ibscbs cClassTrib deve ter 6 dígitos", path)

	if t := inf.Tomador; t != nil && t.Identificacao != nil && t.Identificacao.CpfCnpj != "" {
		v.check(validDocumento(t.Identificacao.CpfCnpj), "%s.tomador.identificacao.cpf_cnpj deve ter 11 ou 14 dígitos", path)
	}
	if i := inf.Intermediario; i != nil && i.CpfCnpj != "" {
		v.check(validDocumento(i.CpfCnpj), "%s.intermediario.cpf_cnpj deve ter 11 ou 14 dígitos", path)
	}
}

func validDocumento(doc string) bool {
	n := len(abrasf.NormalizeDocumento(doc))
	return n == 11 || n == 14
}

// Validate valida la solicitud de emisión individual.
func (r GerarNfseRequest) Validate() error {
	return ValidateRps(r.Rps)
}

// Validate valida el lote: número, al menos un RPS y cada RPS individualmente.
func (r EnviarLoteRpsRequest) Validate() error {
	v := &validator{}
	v.check(strings.TrimSpace(r.NumeroLote) != "", "numero_lote obrigatório")
	v.check(len(r.ListaRps) > 0, "lista_rps deve conter ao menos um RPS")
	for i, rps := range r.ListaRps {
		validateRps(v, fmt.Sprintf("lista_rps[%d]", i), rps)
	}
	return v.err()
}

// Validate valida la consulta por RPS.
func (r ConsultarNfsePorRpsRequest) Validate() error {
	v := &validator{}
	v.check(r.IdentificacaoRps.Numero > 0, "identificacao_rps.numero obrigatório")
	v.check(strings.TrimSpace(r.IdentificacaoRps.Serie) != "", "identificacao_rps.serie obrigatória")
	v.check(abrasf.ValidTiposRps[r.IdentificacaoRps.TipoOrDefault()], "identificacao_rps.tipo inválido")
	return v.err()
}

// Validate valida la consulta por período.
func (r ConsultarNfseRequest) Validate() error {
	v := &validator{}
	if r.DataInicial != nil && r.DataFinal != nil {
		v.check(!r.DataFinal.Before(r.DataInicial.Time), "data_final anterior a data_inicial")
	}
	v.check(r.Pagina >= 0, "pagina inválida")
	return v.err()
}

// Validate valida el pedido de cancelamento.
func (r CancelarNfseRequest) Validate() error {
	v := &validator{}
	v.check(r.NumeroNfse > 0, "numero_nfse obrigatório")
	v.check(abrasf.ValidCodigosCancelamento[r.CodigoCancelamento], "codigo_cancelamento inválido (%q)", r.CodigoCancelamento)
	return v.err()
}

// Validate valida la sustitución: pedido de cancelamento más el RPS sustituto.
func (r SubstituirNfseRequest) Validate() error {
	v := &validator{}
	v.check(r.NumeroNfseSubstituida > 0, "numero_nfse_substituida obrigatório")
	v.check(abrasf.ValidCodigosCancelamento[r.CodigoCancelamento], "codigo_cancelamento inválido (%q)", r.CodigoCancelamento)
	validateRps(v, "rps_substituto", r.RpsSubstituto)
	return v.err()
}

// ValidateProtocolo valida el protocolo de las consultas de lote.
func ValidateProtocolo(protocolo string) error {
	if strings.TrimSpace(protocolo) == "" {
		return &ValidationError{Fields: []string{"protocolo obrigatório"}}
	}
	return nil
}

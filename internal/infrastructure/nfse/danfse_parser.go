package nfse

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

// ParseDanfse extrae de una CompNfse (o Nfse) los datos del DANFSe.
func (p *ResponseParser) ParseDanfse(raw []byte) (*dom.Danfse, error) {
	root, err := readRoot(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	inf := findLocal(root, "InfNfse")
	if inf == nil {
		return nil, fmt.Errorf("%w: XML da NFSe sem InfNfse", domain.ErrValidation)
	}

	numero, _ := parseInt64(childText(inf, "Numero"))
	d := &dom.Danfse{
		Numero:            numero,
		CodigoVerificacao: childText(inf, "CodigoVerificacao"),
		DataEmissao:       parseDate(childText(inf, "DataEmissao")),
		OutrasInformacoes: childText(inf, "OutrasInformacoes"),
		Cancelada:         findLocal(root, "NfseCancelamento") != nil,
	}

	if vn := childLocal(inf, "ValoresNfse"); vn != nil {
		d.BaseCalculo = decimalOf(vn, "BaseCalculo")
		d.Aliquota = decimalOf(vn, "Aliquota")
		d.ValorIss = decimalOf(vn, "ValorIss")
		d.ValorLiquidoNfse = decimalOf(vn, "ValorLiquidoNfse")
	}
	if og := childLocal(inf, "OrgaoGerador"); og != nil {
		d.CodigoMunicipio = childText(og, "CodigoMunicipio")
	}
	if ps := childLocal(inf, "PrestadorServico"); ps != nil {
		d.Prestador = parteOf(ps, "IdentificacaoPrestador")
	}

	if decl := findLocal(inf, "InfDeclaracaoPrestacaoServico"); decl != nil {
		d.Competencia = childText(decl, "Competencia")
		if s := childLocal(decl, "Servico"); s != nil {
			if v := childLocal(s, "Valores"); v != nil {
				d.ValorServicos = decimalOf(v, "ValorServicos")
				d.ValorDeducoes = decimalOf(v, "ValorDeducoes")
				if d.ValorIss.IsZero() {
					d.ValorIss = decimalOf(v, "ValorIss")
				}
				if d.Aliquota.IsZero() {
					d.Aliquota = decimalOf(v, "Aliquota")
				}
			}
			d.IssRetido = childText(s, "IssRetido") == "1"
			d.ItemListaServico = childText(s, "ItemListaServico")
			d.CodigoTributacaoMunicipio = childText(s, "CodigoTributacaoMunicipio")
			d.Discriminacao = childText(s, "Discriminacao")
			if d.CodigoMunicipio == "" {
				d.CodigoMunicipio = childText(s, "CodigoMunicipio")
			}
		}
		if t := childLocal(decl, "TomadorServico"); t != nil {
			d.Tomador = parteOf(t, "IdentificacaoTomador")
		} else if t := childLocal(decl, "Tomador"); t != nil {
			d.Tomador = parteOf(t, "IdentificacaoTomador")
		}
		if d.Prestador.CpfCnpj == "" {
			if pr := childLocal(decl, "Prestador"); pr != nil {
				d.Prestador.CpfCnpj = documentoOf(pr)
				d.Prestador.InscricaoMunicipal = childText(pr, "InscricaoMunicipal")
			}
		}
	}
	if d.BaseCalculo.IsZero() {
		d.BaseCalculo = d.ValorServicos.Sub(d.ValorDeducoes)
	}
	if d.ValorLiquidoNfse.IsZero() {
		d.ValorLiquidoNfse = d.ValorServicos
	}
	return d, nil
}

func parteOf(el *etree.Element, identificacao string) dom.ParteDanfse {
	parte := dom.ParteDanfse{RazaoSocial: childText(el, "RazaoSocial")}
	if id := childLocal(el, identificacao); id != nil {
		parte.CpfCnpj = documentoOf(id)
		parte.InscricaoMunicipal = childText(id, "InscricaoMunicipal")
	}
	if end := childLocal(el, "Endereco"); end != nil {
		parte.Endereco = enderecoOf(end)
	}
	if c := childLocal(el, "Contato"); c != nil {
		parte.Email = childText(c, "Email")
	}
	return parte
}

func documentoOf(el *etree.Element) string {
	if doc := textOf(el, "Cnpj"); doc != "" {
		return abrasf.FormatCNPJ(doc)
	}
	return textOf(el, "Cpf")
}

func enderecoOf(end *etree.Element) string {
	var parts []string
	for _, name := range []string{"Endereco", "Numero", "Complemento", "Bairro", "Uf", "Cep"} {
		if v := childText(end, name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func decimalOf(el *etree.Element, name string) decimal.Decimal {
	v, err := decimal.NewFromString(childText(el, name))
	if err != nil {
		return decimal.Zero
	}
	return v
}

// Package pdf genera el DANFSe (Documento Auxiliar da NFS-e), la representación
// gráfica A4 de una NFSe emitida.
//
// Layout de la página:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Prestador + CNPJ    │  N° NFSe + Emissão + Código   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PRESTADOR: IM / Endereço                                    │
//	│  TOMADOR: Razão social + CPF/CNPJ + Endereço                 │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DISCRIMINAÇÃO DOS SERVIÇOS                                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VALORES: Serviços / Deduções / Base / Alíquota / ISS        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR + Código de verificação + Outras informações     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 180, Green: 20, Blue: 20}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// DanfseGenerator genera el DANFSe con Maroto v2.
type DanfseGenerator struct{}

// NewDanfseGenerator construye el generador.
func NewDanfseGenerator() *DanfseGenerator { return &DanfseGenerator{} }

// Generate genera el PDF y devuelve sus bytes.
func (g *DanfseGenerator) Generate(_ context.Context, d *dom.Danfse) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("pdf: NFSe vazia")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(fmt.Sprintf("DANFSe %d", d.Numero), true).
		WithAuthor(d.Prestador.RazaoSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(d))
	if d.Cancelada {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("NFS-e CANCELADA", props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Center, Color: colorRed, Top: 1,
			}),
		)))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(parteRow("PRESTADOR DE SERVIÇOS", d.Prestador))
	m.AddRows(parteRow("TOMADOR DE SERVIÇOS", d.Tomador))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(discriminacaoRows(d)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(valoresRow(d))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(d)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(d *dom.Danfse) core.Row {
	emissao := "-"
	if d.DataEmissao != nil {
		emissao = d.DataEmissao.Format("02/01/2006 15:04")
	}
	return row.New(20).Add(
		col.New(7).Add(
			text.New(nonEmpty(d.Prestador.RazaoSocial, "Prestador"), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+nonEmpty(d.Prestador.CpfCnpj, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("NOTA FISCAL DE SERVIÇOS ELETRÔNICA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Nº %d", d.Numero), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 6,
			}),
			text.New("Emissão: "+emissao, props.Text{
				Size: 8, Align: align.Right, Top: 12, Color: colorGray,
			}),
			text.New("Competência: "+nonEmpty(d.Competencia, "-"), props.Text{
				Size: 8, Align: align.Right, Top: 16, Color: colorGray,
			}),
		),
	)
}

func parteRow(titulo string, p dom.ParteDanfse) core.Row {
	detalhe := fmt.Sprintf("CPF/CNPJ: %s   |   IM: %s   |   Email: %s",
		nonEmpty(p.CpfCnpj, "-"), nonEmpty(p.InscricaoMunicipal, "-"), nonEmpty(p.Email, "-"))
	return row.New(18).Add(
		col.New(12).Add(
			text.New(titulo, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(p.RazaoSocial, "Não identificado"), props.Text{Style: fontstyle.Bold, Size: 10, Top: 5}),
			text.New(detalhe, props.Text{Size: 8, Top: 10, Color: colorGray}),
			text.New(nonEmpty(p.Endereco, ""), props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
	)
}

func discriminacaoRows(d *dom.Danfse) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("DISCRIMINAÇÃO DOS SERVIÇOS", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	for _, l := range strings.Split(nonEmpty(d.Discriminacao, "-"), "\n") {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New(l, props.Text{Size: 8, Top: 0.5, Left: 2}),
		)))
	}
	rows = append(rows, row.New(6).Add(col.New(12).Add(
		text.New(fmt.Sprintf("Item da lista: %s   |   Código de tributação: %s   |   Município: %s",
			nonEmpty(d.ItemListaServico, "-"), nonEmpty(d.CodigoTributacaoMunicipio, "-"), nonEmpty(d.CodigoMunicipio, "-")),
			props.Text{Size: 7, Top: 1, Color: colorGray}),
	)))
	return rows
}

func valoresRow(d *dom.Danfse) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	retido := "Não"
	if d.IssRetido {
		retido = "Sim"
	}
	return row.New(34).Add(
		col.New(4),
		col.New(4).Add(
			label("Valor dos serviços:"),
			label("Deduções:"),
			label("Base de cálculo:"),
			label("Alíquota:"),
			label("Valor do ISS:"),
			label("ISS retido:"),
			label("VALOR LÍQUIDO:"),
		),
		col.New(4).Add(
			value(formatMoney(d.ValorServicos)),
			value(formatMoney(d.ValorDeducoes)),
			value(formatMoney(d.BaseCalculo)),
			value(d.Aliquota.StringFixed(2)+"%"),
			value(formatMoney(d.ValorIss)),
			value(retido),
			text.New(formatMoney(d.ValorLiquidoNfse), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1,
			}),
		),
	)
}

func footerRows(d *dom.Danfse) []core.Row {
	rows := []core.Row{
		row.New(40).Add(
			col.New(4).Add(code.NewQr(d.QRData(), props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("CÓDIGO DE VERIFICAÇÃO", props.Text{Style: fontstyle.Bold, Size: 8, Top: 4, Left: 3, Color: colorPrimary}),
				text.New(nonEmpty(d.CodigoVerificacao, "-"), props.Text{Style: fontstyle.Bold, Size: 12, Top: 9, Left: 3}),
				text.New("Confira a autenticidade desta NFS-e no portal da prefeitura.", props.Text{
					Size: 8, Top: 18, Left: 3, Color: colorGray,
				}),
			),
		),
	}
	if d.OutrasInformacoes != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Outras informações: "+d.OutrasInformacoes, props.Text{Size: 7, Top: 2, Color: colorGray}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formato brasileño con dos decimales. Ej: 1500 → "R$ 1.500,00".
func formatMoney(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + string(buf) + "," + frac
}

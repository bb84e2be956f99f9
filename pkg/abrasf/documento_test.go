package abrasf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

func TestNormalizeDocumento(t *testing.T) {
	assert.Equal(t, "12345678000100", abrasf.NormalizeDocumento("12.345.678/0001-00"))
	assert.Equal(t, "12345678909", abrasf.NormalizeDocumento(" 123.456.789-09 "))
}

func TestDocumentoTag(t *testing.T) {
	assert.Equal(t, "Cpf", abrasf.DocumentoTag("123.456.789-09"), "11 dígitos debe ser Cpf")
	assert.Equal(t, "Cnpj", abrasf.DocumentoTag("12.345.678/0001-00"))
	assert.Equal(t, "Cnpj", abrasf.DocumentoTag("123"), "cualquier otro largo se trata como Cnpj")
}

func TestValidateCNPJ(t *testing.T) {
	cases := []struct {
		name  string
		cnpj  string
		valid bool
	}{
		{"con máscara", "11.222.333/0001-81", true},
		{"sin máscara", "11222333000181", true},
		{"dígito incorrecto", "11.222.333/0001-82", false},
		{"todos iguales", "11111111111111", false},
		{"largo incorrecto", "1122233300018", false},
		{"letras", "11.222.333/0001-8A", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := abrasf.ValidateCNPJ(tc.cnpj)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateCPF(t *testing.T) {
	assert.NoError(t, abrasf.ValidateCPF("529.982.247-25"))
	assert.Error(t, abrasf.ValidateCPF("529.982.247-26"))
	assert.Error(t, abrasf.ValidateCPF("000.000.000-00"))
}

func TestFormatCNPJ(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", abrasf.FormatCNPJ("11222333000181"))
	assert.Equal(t, "123", abrasf.FormatCNPJ("123"))
}

func TestDescricaoSituacao(t *testing.T) {
	assert.Equal(t, "Não Recebido", abrasf.DescricaoSituacao(1))
	assert.Equal(t, "Não Processado", abrasf.DescricaoSituacao(2))
	assert.Equal(t, "Processado com Erro", abrasf.DescricaoSituacao(3))
	assert.Equal(t, "Processado com Sucesso", abrasf.DescricaoSituacao(4))
	assert.Equal(t, "Desconhecido", abrasf.DescricaoSituacao(9))
}

func TestCNPJFromTitular(t *testing.T) {
	cnpj, ok := abrasf.CNPJFromTitular("EMPRESA EXEMPLO LTDA:11222333000181")
	assert.True(t, ok)
	assert.Equal(t, "11222333000181", cnpj)

	_, ok = abrasf.CNPJFromTitular("FULANO DE TAL:12345678909")
	assert.False(t, ok, "un CPF no es CNPJ")

	_, ok = abrasf.CNPJFromTitular("SEM DOCUMENTO")
	assert.False(t, ok)
}

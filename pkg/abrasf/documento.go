package abrasf

import (
	"fmt"
	"strings"
	"unicode"
)

// pesos del módulo 11 para CNPJ (primer y segundo dígito verificador).
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeDocumento elimina la puntuación de un CNPJ/CPF ('.', '/', '-') antes de embeberlo en el XML.
func NormalizeDocumento(doc string) string {
	return strings.NewReplacer(".", "", "/", "", "-", "").Replace(strings.TrimSpace(doc))
}

// IsCPF indica si el documento normalizado corresponde a una persona física (11 dígitos).
func IsCPF(doc string) bool {
	return len(NormalizeDocumento(doc)) == 11
}

// DocumentoTag devuelve el nombre del elemento ABRASF para el documento: "Cpf" o "Cnpj".
func DocumentoTag(doc string) string {
	if IsCPF(doc) {
		return "Cpf"
	}
	return "Cnpj"
}

// ValidateCNPJ valida un CNPJ (con o sin máscara) según el algoritmo módulo 11 de la Receita Federal.
func ValidateCNPJ(cnpj string) error {
	digits := extractDigits(cnpj)
	if len(digits) != 14 || len(digits) != len(NormalizeDocumento(cnpj)) {
		return fmt.Errorf("abrasf: CNPJ debe tener 14 dígitos, se encontraron %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("abrasf: CNPJ con todos los dígitos iguales")
	}
	d1 := checkDigit(digits[:12], cnpjWeights1[:])
	d2 := checkDigit(append(append([]byte{}, digits[:12]...), d1), cnpjWeights2[:])
	if digits[12] != d1 || digits[13] != d2 {
		return fmt.Errorf("abrasf: dígitos verificadores del CNPJ inválidos: esperado %c%c, recibido %c%c", d1, d2, digits[12], digits[13])
	}
	return nil
}

// ValidateCPF valida un CPF (con o sin máscara) con los pesos decrecientes 10..2 y 11..2.
func ValidateCPF(cpf string) error {
	digits := extractDigits(cpf)
	if len(digits) != 11 || len(digits) != len(NormalizeDocumento(cpf)) {
		return fmt.Errorf("abrasf: CPF debe tener 11 dígitos, se encontraron %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("abrasf: CPF con todos los dígitos iguales")
	}
	d1 := checkDigit(digits[:9], descending(10, 9))
	d2 := checkDigit(digits[:10], descending(11, 10))
	if digits[9] != d1 || digits[10] != d2 {
		return fmt.Errorf("abrasf: dígitos verificadores del CPF inválidos: esperado %c%c, recibido %c%c", d1, d2, digits[9], digits[10])
	}
	return nil
}

// FormatCNPJ aplica la máscara XX.XXX.XXX/XXXX-XX; si no tiene 14 dígitos lo devuelve tal cual.
func FormatCNPJ(cnpj string) string {
	c := NormalizeDocumento(cnpj)
	if len(c) != 14 {
		return cnpj
	}
	return c[:2] + "." + c[2:5] + "." + c[5:8] + "/" + c[8:12] + "-" + c[12:]
}

func checkDigit(digits []byte, weights []int) byte {
	var sum int
	for i, d := range digits {
		sum += int(d-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + (11 - r))
}

func descending(from, n int) []int {
	w := make([]int, n)
	for i := range w {
		w[i] = from - i
	}
	return w
}

func allSame(digits []byte) bool {
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}

// CNPJFromTitular extrae el CNPJ del titular de un certificado ICP-Brasil
// ("RAZAO SOCIAL:12345678000190"). ok es false si el sufijo no es un CNPJ válido.
func CNPJFromTitular(titular string) (cnpj string, ok bool) {
	i := strings.LastIndexByte(titular, ':')
	if i < 0 {
		return "", false
	}
	cnpj = strings.TrimSpace(titular[i+1:])
	if ValidateCNPJ(cnpj) != nil {
		return "", false
	}
	return cnpj, true
}

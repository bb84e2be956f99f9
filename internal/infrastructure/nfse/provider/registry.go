package provider

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
)

// UnsupportedError municipio sin proveedor. Lista los municipios disponibles.
type UnsupportedError struct {
	Codigo      string
	Nome        string
	Disponiveis []string // "Nome/UF"
}

func (e *UnsupportedError) Error() string {
	alvo := fmt.Sprintf("com código %s", e.Codigo)
	if e.Nome != "" {
		alvo = fmt.Sprintf("'%s'", e.Nome)
	}
	return fmt.Sprintf("Município %s não está disponível para emissão de NFSe. Municípios disponíveis: %s",
		alvo, strings.Join(e.Disponiveis, ", "))
}

func (e *UnsupportedError) Unwrap() error { return domain.ErrMunicipioNotSupported }

// Registry resuelve el proveedor por código IBGE (o por nombre).
// Se llena al arranque; Register admite altas posteriores.
type Registry struct {
	mu     sync.RWMutex
	byCode map[string]Provider
	byName map[string]string // nombre normalizado -> código
	order  []string
}

// NewRegistry crea el registro con los proveedores dados.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		byCode: make(map[string]Provider),
		byName: make(map[string]string),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultRegistry registro con los municipios implementados.
func DefaultRegistry() *Registry {
	return NewRegistry(NewSantos())
}

// Register agrega (o reemplaza) el proveedor de un municipio. Los alias de
// nombre "Nome" y "Nome/UF" se derivan del descriptor.
func (r *Registry) Register(p Provider, aliases ...string) {
	d := p.Descriptor()
	code := NormalizeCodigo(d.CodigoMunicipio)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[code]; !exists {
		r.order = append(r.order, code)
	}
	r.byCode[code] = p
	names := append([]string{d.NomeMunicipio, d.NomeMunicipio + "/" + d.UF}, aliases...)
	for _, n := range names {
		r.byName[normalizeNome(n)] = code
	}
}

// Resolve devuelve el proveedor del código IBGE (se ignoran "." y "-").
func (r *Registry) Resolve(codigoMunicipio string) (Provider, error) {
	code := NormalizeCodigo(codigoMunicipio)
	if code == "" {
		return nil, domain.ErrMunicipioNotSet
	}
	r.mu.RLock()
	p, ok := r.byCode[code]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedError{Codigo: code, Disponiveis: r.labels()}
	}
	return p, nil
}

// ResolveByName resuelve por nombre del municipio, sin distinguir mayúsculas ni acentos.
func (r *Registry) ResolveByName(nome string) (Provider, error) {
	if strings.TrimSpace(nome) == "" {
		return nil, fmt.Errorf("%w: nome do município não informado", domain.ErrInvalidInput)
	}
	r.mu.RLock()
	code, ok := r.byName[normalizeNome(nome)]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedError{Nome: nome, Disponiveis: r.labels()}
	}
	return r.Resolve(code)
}

// ListAvailable catálogo en orden de registro.
func (r *Registry) ListAvailable() []Municipio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Municipio, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code].Descriptor().Municipio())
	}
	return out
}

// IsAvailable indica si hay proveedor para el código.
func (r *Registry) IsAvailable(codigoMunicipio string) bool {
	code := NormalizeCodigo(codigoMunicipio)
	if code == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCode[code]
	return ok
}

func (r *Registry) labels() []string {
	list := r.ListAvailable()
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.Label())
	}
	return out
}

// NormalizeCodigo quita puntos, guiones y espacios del código IBGE.
func NormalizeCodigo(s string) string {
	return strings.TrimSpace(strings.NewReplacer(".", "", "-", "").Replace(s))
}

// normalizeNome minúsculas sin acentos. El transformer no es seguro para uso
// concurrente, se crea por llamada.
func normalizeNome(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

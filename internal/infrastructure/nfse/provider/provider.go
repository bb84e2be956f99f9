// Package provider encapsula las diferencias de cable entre prefeituras:
// namespaces, envelope SOAP, tabla de SOAPAction y URLs por ambiente.
// El orquestador depende solo de la interfaz Provider.
package provider

import (
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
)

// Provider estrategia de un municipio (o de un sistema usado por varios municipios).
type Provider interface {
	Descriptor() Descriptor

	// Wrap embebe el XML firmado en el envelope SOAP de la operación.
	Wrap(signedXML []byte, op dom.Operation) ([]byte, error)
	// WrapRaw igual a Wrap para documentos del XML directo (cabecalho propio del proveedor).
	WrapRaw(signedXML []byte, op dom.Operation) ([]byte, error)
	// Unwrap extrae el XML de respuesta del envelope. Nunca falla: si no reconoce
	// la forma devuelve el cuerpo tal cual.
	Unwrap(raw []byte, op dom.Operation) []byte
	// SoapAction valor del header SOAPAction de la operación.
	SoapAction(op dom.Operation) string
}

// Descriptor datos inmutables del proveedor de un municipio.
type Descriptor struct {
	CodigoMunicipio string
	NomeMunicipio   string
	UF              string
	NomeProvedor    string
	VersaoAbrasf    string

	// Namespace del documento ABRASF estructurado.
	Namespace string

	URLHomologacao string
	URLProducao    string

	// Namespaces del XML directo (re-namespacing).
	Raw RawNamespaces
}

// RawNamespaces destino del re-namespacing: la raíz va a Root (o RootSincrono) con
// RootPrefix; el resto de elementos a Types con TypesPrefix.
type RawNamespaces struct {
	RootPrefix   string
	Root         string
	RootSincrono string
	TypesPrefix  string
	Types        string
}

// URL devuelve el endpoint del ambiente.
func (d Descriptor) URL(producao bool) string {
	if producao {
		return d.URLProducao
	}
	return d.URLHomologacao
}

// RootNamespace namespace de la raíz del XML directo.
func (r RawNamespaces) RootNamespace(sincrono bool) string {
	if sincrono && r.RootSincrono != "" {
		return r.RootSincrono
	}
	return r.Root
}

// Municipio resumen público del catálogo.
type Municipio struct {
	CodigoIbge   string `json:"codigo_ibge"`
	Nome         string `json:"nome"`
	UF           string `json:"uf"`
	Provedor     string `json:"provedor"`
	VersaoAbrasf string `json:"versao_abrasf"`
}

// Municipio resumen del descriptor.
func (d Descriptor) Municipio() Municipio {
	return Municipio{
		CodigoIbge:   d.CodigoMunicipio,
		Nome:         d.NomeMunicipio,
		UF:           d.UF,
		Provedor:     d.NomeProvedor,
		VersaoAbrasf: d.VersaoAbrasf,
	}
}

// Label "Nome/UF".
func (m Municipio) Label() string {
	return m.Nome + "/" + m.UF
}

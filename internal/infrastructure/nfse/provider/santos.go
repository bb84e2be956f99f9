package provider

// Santos/SP usa el sistema GISS con ABRASF 2.04.
const (
	CodigoSantos = "3548500"

	gissURLHomologacao = "https://ws-homologacao-rtc.giss.com.br/service-ws/nf/nfse-ws"
	gissURLProducao    = "https://ws.giss.com.br/service-ws/nf/nfse-ws"
)

// SantosDescriptor descriptor de Santos/SP.
func SantosDescriptor() Descriptor {
	return Descriptor{
		CodigoMunicipio: CodigoSantos,
		NomeMunicipio:   "Santos",
		UF:              "SP",
		NomeProvedor:    "GISS",
		VersaoAbrasf:    "2.04",
		Namespace:       NamespaceABRASF,
		URLHomologacao:  gissURLHomologacao,
		URLProducao:     gissURLProducao,
		Raw: RawNamespaces{
			RootPrefix:   "p",
			Root:         "http://www.giss.com.br/enviar-lote-rps-envio-v2_04.xsd",
			RootSincrono: "http://www.giss.com.br/enviar-lote-rps-sincrono-envio-v2_04.xsd",
			TypesPrefix:  "p1",
			Types:        "http://www.giss.com.br/tipos-v2_04.xsd",
		},
	}
}

// NewSantos proveedor GISS de Santos/SP.
func NewSantos() *GISSProvider {
	return NewGISS(SantosDescriptor())
}

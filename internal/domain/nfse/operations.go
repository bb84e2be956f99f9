package nfse

// Operation método SOAP del padrón ABRASF. El valor es el nombre del método,
// que también da nombre al elemento <{Metodo}Request> del envelope.
type Operation string

// Las nueve operaciones lógicas expuestas a los integradores.
const (
	OpGerarNfse                    Operation = "GerarNfse"
	OpRecepcionarLoteRps           Operation = "RecepcionarLoteRps"
	OpRecepcionarLoteRpsSincrono   Operation = "RecepcionarLoteRpsSincrono"
	OpConsultarSituacaoLoteRps     Operation = "ConsultarSituacaoLoteRps"
	OpConsultarLoteRps             Operation = "ConsultarLoteRps"
	OpConsultarNfsePorRps          Operation = "ConsultarNfsePorRps"
	OpConsultarNfseServicoPrestado Operation = "ConsultarNfseServicoPrestado"
	OpCancelarNfse                 Operation = "CancelarNfse"
	OpSubstituirNfse               Operation = "SubstituirNfse"

	// OpConsultarNfseServicoTomado solo tiene SOAPAction; no hay ensamblador estructurado.
	OpConsultarNfseServicoTomado Operation = "ConsultarNfseServicoTomado"
)

// OperationInfo describe el documento de envío de una operación.
type OperationInfo struct {
	Operation   Operation
	RootElement string
	// Signable indica si el documento lleva elementos con Id (RPS, lote, pedido)
	// y por lo tanto pasa por el motor de firma. Las consultas viajan sin firma.
	Signable bool
}

var operationTable = map[Operation]OperationInfo{
	OpGerarNfse:                    {OpGerarNfse, "GerarNfseEnvio", true},
	OpRecepcionarLoteRps:           {OpRecepcionarLoteRps, "EnviarLoteRpsEnvio", true},
	OpRecepcionarLoteRpsSincrono:   {OpRecepcionarLoteRpsSincrono, "EnviarLoteRpsSincronoEnvio", true},
	OpConsultarSituacaoLoteRps:     {OpConsultarSituacaoLoteRps, "ConsultarSituacaoLoteRpsEnvio", false},
	OpConsultarLoteRps:             {OpConsultarLoteRps, "ConsultarLoteRpsEnvio", false},
	OpConsultarNfsePorRps:          {OpConsultarNfsePorRps, "ConsultarNfsePorRpsEnvio", false},
	OpConsultarNfseServicoPrestado: {OpConsultarNfseServicoPrestado, "ConsultarNfseServicoPrestadoEnvio", false},
	OpConsultarNfseServicoTomado:   {OpConsultarNfseServicoTomado, "ConsultarNfseServicoTomadoEnvio", false},
	OpCancelarNfse:                 {OpCancelarNfse, "CancelarNfseEnvio", true},
	OpSubstituirNfse:               {OpSubstituirNfse, "SubstituirNfseEnvio", true},
}

// Info devuelve la descripción de la operación. ok=false para métodos desconocidos.
func (o Operation) Info() (OperationInfo, bool) {
	s, ok := operationTable[o]
	return s, ok
}

// Signable indica si la operación se firma. Métodos desconocidos (vía XML directo) se firman
// cuando el documento trae elementos con Id.
func (o Operation) Signable() bool {
	s, ok := operationTable[o]
	return !ok || s.Signable
}

func (o Operation) String() string { return string(o) }

package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Errores del pipeline NFSe. Los mensajes son visibles para el integrador.
var (
	ErrCompanyInactive       = errors.New("Esta empresa está inativa.")
	ErrMunicipioNotSet       = errors.New("Código do município não configurado para esta empresa.")
	ErrCertificateMissing    = errors.New("Certificado digital não configurado para esta empresa.")
	ErrCertificateExpired    = errors.New("certificado digital expirado")
	ErrCertificateDecode     = errors.New("não foi possível abrir o certificado digital (senha incorreta ou arquivo corrompido)")
	ErrMunicipioNotSupported = errors.New("município não suportado")
	ErrNoSignableElements    = errors.New("nenhum elemento com atributo Id para assinar")
	ErrValidation            = errors.New("requisição inválida")
	ErrTransport             = errors.New("erro na comunicação com o WebService")
	ErrInvalidReply          = errors.New("retorno da prefeitura inválido")
)

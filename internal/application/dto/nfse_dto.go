package dto

// DanfseRequest XML de la NFSe (CompNfse o Nfse) para generar el PDF.
type DanfseRequest struct {
	XmlNfse string `json:"xml_nfse" validate:"required"`
}

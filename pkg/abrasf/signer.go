package abrasf

import "crypto/tls"

// Signer firma un documento ABRASF y devuelve el XML con el nodo Signature
// anexado como último hijo del elemento raíz.
type Signer interface {
	// Sign crea una Reference "#Id" por cada elemento con atributo Id y
	// embebe el certificado público en KeyInfo/X509Data.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}

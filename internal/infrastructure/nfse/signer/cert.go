// Carga del certificado A1 (PKCS#12 / PFX) de la empresa.

package signer

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
)

// LoadFromPFX decodifica un PFX en memoria. Acepta PFX con cadena (ICP-Brasil);
// el certificado hoja es el que corresponde a la llave privada.
// Cualquier falla envuelve domain.ErrCertificateDecode.
func LoadFromPFX(data []byte, password string) (tls.Certificate, error) {
	if len(data) == 0 {
		return tls.Certificate{}, fmt.Errorf("%w: pfx vacío", domain.ErrCertificateDecode)
	}
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCertificateDecode, err)
	}

	var key crypto.PrivateKey
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if key, err = parsePrivateKey(b.Bytes); err != nil {
				return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCertificateDecode, err)
			}
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCertificateDecode, err)
			}
			certs = append(certs, c)
		}
	}
	if key == nil || len(certs) == 0 {
		return tls.Certificate{}, fmt.Errorf("%w: pfx sin llave privada o certificado", domain.ErrCertificateDecode)
	}

	leafIdx := -1
	for i, c := range certs {
		if matchesKey(c, key) {
			leafIdx = i
			break
		}
	}
	if leafIdx < 0 {
		return tls.Certificate{}, fmt.Errorf("%w: ningún certificado corresponde a la llave privada", domain.ErrCertificateDecode)
	}

	out := tls.Certificate{PrivateKey: key, Leaf: certs[leafIdx]}
	out.Certificate = append(out.Certificate, certs[leafIdx].Raw)
	for i, c := range certs {
		if i != leafIdx {
			out.Certificate = append(out.Certificate, c.Raw)
		}
	}
	return out, nil
}

// LoadFromPFXFile lee y decodifica un archivo .pfx/.p12.
func LoadFromPFXFile(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer pfx: %w", err)
	}
	return LoadFromPFX(data, password)
}

// LoadFromPEM carga certificado y llave desde archivos PEM (separados o combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	return cert, nil
}

// Info extrae validez, titular, emisor y serial del certificado hoja.
func Info(cert tls.Certificate) (entity.CertificateInfo, error) {
	leaf, err := leafOf(cert)
	if err != nil {
		return entity.CertificateInfo{}, err
	}
	return entity.CertificateInfo{
		Validade: leaf.NotAfter,
		Titular:  leaf.Subject.CommonName,
		Emissor:  leaf.Issuer.CommonName,
		Serial:   leaf.SerialNumber.Text(16),
	}, nil
}

func leafOf(cert tls.Certificate) (*x509.Certificate, error) {
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("%w: certificado vacío", domain.ErrCertificateDecode)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCertificateDecode, err)
	}
	return leaf, nil
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	return nil, fmt.Errorf("formato de llave privada no soportado")
}

func matchesKey(c *x509.Certificate, key crypto.PrivateKey) bool {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		pub, ok := c.PublicKey.(*rsa.PublicKey)
		return ok && pub.Equal(&k.PublicKey)
	case *ecdsa.PrivateKey:
		pub, ok := c.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Equal(&k.PublicKey)
	}
	return false
}

// EncodePEM serializa el certificado hoja como PEM (usado por cmd/certcheck).
func EncodePEM(cert tls.Certificate) ([]byte, error) {
	leaf, err := leafOf(cert)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

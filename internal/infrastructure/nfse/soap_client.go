package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
)

const (
	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 4 << 20
)

// TransportError respuesta HTTP fuera de 2xx del WebService, o que excede
// MaxResponseBytes (Motivo lo indica y Body llega truncado).
type TransportError struct {
	StatusCode int
	Body       []byte
	Motivo     string
}

func (e *TransportError) Error() string {
	if e.Motivo != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", domain.ErrTransport.Error(), e.StatusCode, e.Motivo)
	}
	return fmt.Sprintf("%s: HTTP %d", domain.ErrTransport.Error(), e.StatusCode)
}

func (e *TransportError) Unwrap() error { return domain.ErrTransport }

// SOAPResponse cuerpo crudo y status de una llamada exitosa.
type SOAPResponse struct {
	StatusCode int
	Body       []byte
}

// SOAPClientConfig parámetros del transporte.
type SOAPClientConfig struct {
	Timeout          time.Duration
	MaxResponseBytes int64
	// RootCAs nil usa los CA del sistema.
	RootCAs *x509.CertPool
}

// SOAPClient POST SOAP 1.1 con TLS mutuo. No reintenta.
type SOAPClient struct {
	cfg SOAPClientConfig
}

// NewSOAPClient construye el transporte; valores cero toman los defaults (60 s, 4 MiB).
func NewSOAPClient(cfg SOAPClientConfig) *SOAPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	return &SOAPClient{cfg: cfg}
}

// Send envía el envelope presentando el certificado del tenant. El cliente HTTP
// vive solo durante la llamada: el certificado no queda retenido.
func (c *SOAPClient) Send(ctx context.Context, url, soapAction string, envelope []byte, cert tls.Certificate) (*SOAPResponse, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
			RootCAs:      c.cfg.RootCAs,
		},
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: c.cfg.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %w", domain.ErrTransport, ctx.Err())
		}
		var urlErr interface{ Timeout() bool }
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("%w: timeout ao comunicar com o WebService: %w", domain.ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %w", domain.ErrTransport, err)
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       body[:c.cfg.MaxResponseBytes],
			Motivo:     fmt.Sprintf("resposta excede o limite de %d bytes", c.cfg.MaxResponseBytes),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: body}
	}
	return &SOAPResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

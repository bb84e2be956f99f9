package nfse_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/nfse/nfsetest"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
)

// clientFor devuelve un SOAPClient que confía en el certificado del servidor de prueba.
func clientFor(srv *httptest.Server, timeout time.Duration) *nfse.SOAPClient {
	pool := srv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
	return nfse.NewSOAPClient(nfse.SOAPClientConfig{Timeout: timeout, RootCAs: pool})
}

func TestSOAPClient_Send_OK(t *testing.T) {
	var gotAction, gotContentType, gotBody string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	cert := nfsetest.Certificate(t, time.Now().AddDate(1, 0, 0))
	resp, err := clientFor(srv, 5*time.Second).Send(context.Background(), srv.URL, "http://nfse.abrasf.org.br/GerarNfse", []byte("<env/>"), cert)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<ok/>", string(resp.Body))
	assert.Equal(t, "http://nfse.abrasf.org.br/GerarNfse", gotAction)
	assert.Equal(t, "text/xml; charset=utf-8", gotContentType)
	assert.Equal(t, "<env/>", gotBody)
}

func TestSOAPClient_Send_StatusNo2xx(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("soap fault"))
	}))
	defer srv.Close()

	cert := nfsetest.Certificate(t, time.Now().AddDate(1, 0, 0))
	_, err := clientFor(srv, 5*time.Second).Send(context.Background(), srv.URL, "x", []byte("<env/>"), cert)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))

	var te *nfse.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, "soap fault", string(te.Body))
}

func TestSOAPClient_Send_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cert := nfsetest.Certificate(t, time.Now().AddDate(1, 0, 0))
	_, err := clientFor(srv, 100*time.Millisecond).Send(context.Background(), srv.URL, "x", []byte("<env/>"), cert)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport, "el timeout es una falla de transporte terminal")
}

func TestSOAPClient_Send_RespostaAcimaDoLimite(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 65)))
	}))
	defer srv.Close()

	pool := srv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
	client := nfse.NewSOAPClient(nfse.SOAPClientConfig{Timeout: 5 * time.Second, RootCAs: pool, MaxResponseBytes: 64})

	cert := nfsetest.Certificate(t, time.Now().AddDate(1, 0, 0))
	_, err := client.Send(context.Background(), srv.URL, "x", []byte("<env/>"), cert)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport, "no se trunca en silencio")

	var te *nfse.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusOK, te.StatusCode)
	assert.Len(t, te.Body, 64)
	assert.Contains(t, te.Error(), "excede o limite de 64 bytes")
}

func TestSOAPClient_Send_RespostaNoLimite(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	pool := srv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
	client := nfse.NewSOAPClient(nfse.SOAPClientConfig{Timeout: 5 * time.Second, RootCAs: pool, MaxResponseBytes: 64})

	cert := nfsetest.Certificate(t, time.Now().AddDate(1, 0, 0))
	resp, err := client.Send(context.Background(), srv.URL, "x", []byte("<env/>"), cert)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 64)
}

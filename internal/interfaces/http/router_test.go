package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/nfse-abrasf/internal/application/auth"
	appnfse "github.com/jhoicas/nfse-abrasf/internal/application/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/application/usecase"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
	apphttp "github.com/jhoicas/nfse-abrasf/internal/interfaces/http"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stubs
// ──────────────────────────────────────────────────────────────────────────────

const (
	apiKeyAtiva   = "key-ativa"
	apiKeyInativa = "key-inativa"
	apiKeyVencida = "key-vencida"
	tenantID      = "00000000-0000-0000-0000-000000000001"
)

type stubTenants struct{}

func (stubTenants) GetByAPIKey(_ context.Context, key string) (*entity.Company, error) {
	switch key {
	case apiKeyAtiva:
		return &entity.Company{ID: tenantID, Ativa: true}, nil
	case apiKeyInativa:
		return &entity.Company{ID: "inativa", Ativa: false}, nil
	case apiKeyVencida:
		ontem := time.Now().AddDate(0, 0, -1)
		return &entity.Company{ID: "vencida", Ativa: true, HasCertificado: true, CertificadoValidade: &ontem}, nil
	case "falla":
		return nil, errors.New("db caída")
	}
	return nil, nil
}

// stubNFSe registra la última llamada y devuelve respuestas fijas.
type stubNFSe struct {
	companyID string
	protocolo string
	gerar     dom.GerarNfseRequest
	cancelar  dom.CancelarNfseRequest
	sucesso   bool
	preflight error
}

func (s *stubNFSe) base() dom.BaseResponse {
	b := dom.BaseResponse{Sucesso: s.sucesso, Mensagens: []dom.MensagemRetorno{}}
	if !s.sucesso {
		b.Fail("E001", "RPS duplicado")
	}
	return b
}

func (s *stubNFSe) ListMunicipios() []provider.Municipio {
	return []provider.Municipio{{CodigoIbge: "3548500", Nome: "Santos", UF: "SP", Provedor: "GISS", VersaoAbrasf: "2.04"}}
}

func (s *stubNFSe) GerarNfse(_ context.Context, companyID string, req dom.GerarNfseRequest) (*dom.GerarNfseResponse, error) {
	s.companyID, s.gerar = companyID, req
	if s.preflight != nil {
		r := &dom.GerarNfseResponse{}
		r.Fail("X", s.preflight.Error())
		return r, s.preflight
	}
	return &dom.GerarNfseResponse{BaseResponse: s.base(), Nfse: &dom.NfseGerada{Numero: 77}}, nil
}

func (s *stubNFSe) EnviarLoteRps(_ context.Context, companyID string, _ dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsResponse, error) {
	s.companyID = companyID
	return &dom.EnviarLoteRpsResponse{BaseResponse: s.base(), Protocolo: "P1"}, nil
}

func (s *stubNFSe) EnviarLoteRpsSincrono(_ context.Context, companyID string, _ dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsSincronoResponse, error) {
	s.companyID = companyID
	return &dom.EnviarLoteRpsSincronoResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) ConsultarSituacaoLoteRps(_ context.Context, companyID, protocolo string) (*dom.ConsultarSituacaoLoteRpsResponse, error) {
	s.companyID, s.protocolo = companyID, protocolo
	return &dom.ConsultarSituacaoLoteRpsResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) ConsultarLoteRps(_ context.Context, companyID, protocolo string) (*dom.ConsultarLoteRpsResponse, error) {
	s.companyID, s.protocolo = companyID, protocolo
	return &dom.ConsultarLoteRpsResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) ConsultarNfsePorRps(_ context.Context, companyID string, _ dom.ConsultarNfsePorRpsRequest) (*dom.ConsultarNfsePorRpsResponse, error) {
	s.companyID = companyID
	return &dom.ConsultarNfsePorRpsResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) ConsultarNfse(_ context.Context, companyID string, _ dom.ConsultarNfseRequest) (*dom.ConsultarNfseResponse, error) {
	s.companyID = companyID
	return &dom.ConsultarNfseResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) CancelarNfse(_ context.Context, companyID string, req dom.CancelarNfseRequest) (*dom.CancelarNfseResponse, error) {
	s.companyID, s.cancelar = companyID, req
	return &dom.CancelarNfseResponse{BaseResponse: s.base()}, nil
}

func (s *stubNFSe) SubstituirNfse(_ context.Context, companyID string, _ dom.SubstituirNfseRequest) (*dom.SubstituirNfseResponse, error) {
	s.companyID = companyID
	return &dom.SubstituirNfseResponse{BaseResponse: s.base()}, nil
}

type stubXML struct {
	last appnfse.RawXMLRequest
}

func (s *stubXML) Process(_ context.Context, _ string, req appnfse.RawXMLRequest) (*appnfse.RawXMLResponse, error) {
	s.last = req
	return &appnfse.RawXMLResponse{Sucesso: true, XmlOriginal: req.XmlContent, Mensagens: []dom.MensagemRetorno{}}, nil
}

type stubDanfse struct{}

func (stubDanfse) FromXML(_ context.Context, xml string) ([]byte, error) {
	if strings.TrimSpace(xml) == "" {
		return nil, domain.ErrValidation
	}
	return []byte("%PDF-1.4"), nil
}

func (stubDanfse) FromNumero(_ context.Context, _ string, numero int64) ([]byte, error) {
	if numero != 77 {
		return nil, domain.ErrNotFound
	}
	return []byte("%PDF-1.4"), nil
}

type testServer struct {
	app  *fiber.App
	nfse *stubNFSe
	xml  *stubXML
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha"), bcrypt.MinCost)
	require.NoError(t, err)

	ts := &testServer{app: fiber.New(), nfse: &stubNFSe{sucesso: true}, xml: &stubXML{}}
	ts.app.Use(apphttp.RequestID())
	apphttp.Router(ts.app, apphttp.RouterDeps{
		AppName:   "nfse-abrasf",
		AuthUC:    auth.NewAuthUseCase(string(hash), auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: 60}),
		NFSe:      ts.nfse,
		XMLDirect: ts.xml,
		Danfse:    stubDanfse{},
		Tenants:   stubTenants{},
		JWTSecret: testJWTSecret,
		Log:       logger.Nop(),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, apiKey, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(apphttp.HeaderAPIKey, apiKey)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Rutas públicas
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(apphttp.HeaderRequestID), "toda respuesta lleva X-Request-Id")
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestMunicipios_SinAPIKey(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/v1/nfse/municipios", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var out []provider.Municipio
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "3548500", out[0].CodigoIbge)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/login", "", `{"password":"s3nha"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode(t, resp)["token"])

	resp = ts.do(t, http.MethodPost, "/v1/auth/login", "", `{"password":"errada"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// ──────────────────────────────────────────────────────────────────────────────
// Middleware de API key
// ──────────────────────────────────────────────────────────────────────────────

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		status int
		msg    string
	}{
		{"sin key", "", http.StatusUnauthorized, "API Key não fornecida. Use o header X-Api-Key."},
		{"key desconocida", "nope", http.StatusUnauthorized, "API Key inválida."},
		{"empresa inactiva", apiKeyInativa, http.StatusForbidden, "Esta empresa está inativa."},
		{"error del repositorio", "falla", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp := ts.do(t, http.MethodPost, "/v1/nfse/gerar", tt.key, `{}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode(t, resp)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body["message"])
			}
			assert.Empty(t, ts.nfse.companyID, "el servicio no se invoca")
		})
	}
}

func TestAPIKeyMiddleware_CertificadoVencidoSoloAvisa(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/v1/nfse/gerar", apiKeyVencida, `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "el rechazo por certificado es del pre-flight")
	resp.Body.Close()
	assert.Equal(t, "vencida", ts.nfse.companyID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Operaciones NFSe
// ──────────────────────────────────────────────────────────────────────────────

func TestGerar_Sucesso(t *testing.T) {
	ts := newTestServer(t)
	body := `{"rps":{"inf_declaracao_prestacao_servico":{"identificacao":{"numero":10,"serie":"A","tipo":1},` +
		`"servico":{"valores":{"valor_servicos":"1500.00"},"item_lista_servico":"101","discriminacao":"Consultoria"}}}}`

	resp := ts.do(t, http.MethodPost, "/v1/nfse/gerar", apiKeyAtiva, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, resp)

	assert.Equal(t, true, out["sucesso"])
	assert.Equal(t, tenantID, ts.nfse.companyID, "el tenant sale de la API key")
	inf := ts.nfse.gerar.Rps.InfDeclaracaoPrestacaoServico
	assert.Equal(t, int64(10), inf.Identificacao.Numero)
	assert.Equal(t, "1500", inf.Servico.Valores.ValorServicos.String())
}

func TestGerar_FalhaDaPrefeitura400(t *testing.T) {
	ts := newTestServer(t)
	ts.nfse.sucesso = false

	resp := ts.do(t, http.MethodPost, "/v1/nfse/gerar", apiKeyAtiva, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decode(t, resp)
	assert.Equal(t, false, out["sucesso"])
	mensagens, _ := out["mensagens"].([]any)
	require.Len(t, mensagens, 1, "el resultado canónico viaja en el cuerpo")
}

func TestGerar_Preflight(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empresa no encontrada", &appnfse.PreflightError{Codigo: appnfse.CodigoEmpresaNaoEncontrada, Mensagem: "x", Err: domain.ErrNotFound}, http.StatusNotFound},
		{"empresa inactiva", &appnfse.PreflightError{Codigo: appnfse.CodigoEmpresaInativa, Mensagem: "x", Err: domain.ErrCompanyInactive}, http.StatusForbidden},
		{"certificado vencido", &appnfse.PreflightError{Codigo: appnfse.CodigoCertificadoVencido, Mensagem: "x", Err: domain.ErrCertificateExpired}, http.StatusUnprocessableEntity},
		{"municipio sin configurar", &appnfse.PreflightError{Codigo: appnfse.CodigoMunicipioNaoInformado, Mensagem: "x", Err: domain.ErrMunicipioNotSet}, http.StatusUnprocessableEntity},
		{"municipio no soportado", &appnfse.PreflightError{Codigo: appnfse.CodigoMunicipioNaoSuportado, Mensagem: "x", Err: domain.ErrMunicipioNotSupported}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.nfse.preflight = tt.err
			resp := ts.do(t, http.MethodPost, "/v1/nfse/gerar", apiKeyAtiva, `{}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, false, decode(t, resp)["sucesso"])
		})
	}
}

func TestRutasDeLote(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/nfse/lote/P123/situacao", apiKeyAtiva, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "P123", ts.nfse.protocolo)

	resp = ts.do(t, http.MethodGet, "/v1/nfse/lote/P456", apiKeyAtiva, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "P456", ts.nfse.protocolo)

	resp = ts.do(t, http.MethodPost, "/v1/nfse/lote", apiKeyAtiva, `{"numero_lote":"1","lista_rps":[]}`)
	assert.Equal(t, "P1", decode(t, resp)["protocolo"])
}

func TestCancelar(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/v1/nfse/cancelar", apiKeyAtiva, `{"numero_nfse":77,"codigo_cancelamento":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, int64(77), ts.nfse.cancelar.NumeroNfse)
	assert.Equal(t, "1", ts.nfse.cancelar.CodigoCancelamento)
}

func TestBodyInvalido(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/v1/nfse/consultar", apiKeyAtiva, `{"pagina":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", decode(t, resp)["code"])
}

// ──────────────────────────────────────────────────────────────────────────────
// DANFSe
// ──────────────────────────────────────────────────────────────────────────────

func TestDanfse(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/nfse/danfse", apiKeyAtiva, `{"xml_nfse":"<CompNfse/>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	pdf, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))

	resp = ts.do(t, http.MethodPost, "/v1/nfse/danfse", apiKeyAtiva, `{"xml_nfse":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDanfsePorNumero(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/nfse/danfse/77", apiKeyAtiva, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "danfse-77.pdf")
	resp.Body.Close()

	resp = ts.do(t, http.MethodGet, "/v1/nfse/danfse/78", apiKeyAtiva, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodGet, "/v1/nfse/danfse/abc", apiKeyAtiva, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// ──────────────────────────────────────────────────────────────────────────────
// XML directo
// ──────────────────────────────────────────────────────────────────────────────

func TestXMLProcessar(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/v1/nfse/xml/processar", apiKeyAtiva,
		`{"xml_content":"<GerarNfseEnvio/>","metodo_soap":"GerarNfse"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "GerarNfse", ts.xml.last.MetodoSoap)
}

func TestXMLAtalho(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/nfse/xml/enviar-lote-sincrono", apiKeyAtiva,
		`{"xml_content":"<EnviarLoteRpsSincronoEnvio/>","metodo_soap":"Outro"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "RecepcionarLoteRpsSincrono", ts.xml.last.MetodoSoap, "el atalho fija el método")
	assert.True(t, ts.xml.last.IsSincrono)

	resp = ts.do(t, http.MethodPost, "/v1/nfse/xml/inexistente", apiKeyAtiva, `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestXMLAtalho_CorpoXML(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/nfse/xml/gerar-nfse", strings.NewReader("<GerarNfseEnvio/>"))
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set(apphttp.HeaderAPIKey, apiKeyAtiva)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<GerarNfseEnvio/>", ts.xml.last.XmlContent)
	assert.Equal(t, "GerarNfse", ts.xml.last.MetodoSoap)
}

// ──────────────────────────────────────────────────────────────────────────────
// Empresas: protegidas por JWT
// ──────────────────────────────────────────────────────────────────────────────

func TestEmpresas_RequierenJWTDeAdmin(t *testing.T) {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		CompanyUC: usecase.NewCompanyUseCase(nil, nil),
		AuthUC:    auth.NewAuthUseCase("", auth.JWTConfig{}),
		NFSe:      &stubNFSe{},
		Tenants:   stubTenants{},
		JWTSecret: testJWTSecret,
		Log:       logger.Nop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/empresas", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/v1/empresas/abc/api-key", nil)
	req.Header.Set("Authorization", tokenForRole(t, "integrador"))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

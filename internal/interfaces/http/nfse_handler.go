package http

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
)

// NFSeService operaciones ABRASF expuestas por HTTP.
type NFSeService interface {
	ListMunicipios() []provider.Municipio
	GerarNfse(ctx context.Context, companyID string, req dom.GerarNfseRequest) (*dom.GerarNfseResponse, error)
	EnviarLoteRps(ctx context.Context, companyID string, req dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsResponse, error)
	EnviarLoteRpsSincrono(ctx context.Context, companyID string, req dom.EnviarLoteRpsRequest) (*dom.EnviarLoteRpsSincronoResponse, error)
	ConsultarSituacaoLoteRps(ctx context.Context, companyID, protocolo string) (*dom.ConsultarSituacaoLoteRpsResponse, error)
	ConsultarLoteRps(ctx context.Context, companyID, protocolo string) (*dom.ConsultarLoteRpsResponse, error)
	ConsultarNfsePorRps(ctx context.Context, companyID string, req dom.ConsultarNfsePorRpsRequest) (*dom.ConsultarNfsePorRpsResponse, error)
	ConsultarNfse(ctx context.Context, companyID string, req dom.ConsultarNfseRequest) (*dom.ConsultarNfseResponse, error)
	CancelarNfse(ctx context.Context, companyID string, req dom.CancelarNfseRequest) (*dom.CancelarNfseResponse, error)
	SubstituirNfse(ctx context.Context, companyID string, req dom.SubstituirNfseRequest) (*dom.SubstituirNfseResponse, error)
}

// DanfseService genera el PDF de una NFSe.
type DanfseService interface {
	FromXML(ctx context.Context, xmlNfse string) ([]byte, error)
	FromNumero(ctx context.Context, companyID string, numero int64) ([]byte, error)
}

// NFSeHandler rutas de emisión, consulta y cancelación (autenticadas por API key).
type NFSeHandler struct {
	svc    NFSeService
	danfse DanfseService
}

// NewNFSeHandler construye el handler.
func NewNFSeHandler(svc NFSeService, danfse DanfseService) *NFSeHandler {
	return &NFSeHandler{svc: svc, danfse: danfse}
}

// Municipios godoc
// @Summary      Municípios suportados
// @Tags         nfse
// @Produce      json
// @Success      200  {array}  provider.Municipio
// @Router       /v1/nfse/municipios [get]
func (h *NFSeHandler) Municipios(c *fiber.Ctx) error {
	return c.JSON(h.svc.ListMunicipios())
}

// Gerar godoc
// @Summary      Gerar NFSe (síncrono, um RPS)
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  nfse.GerarNfseRequest  true  "RPS"
// @Success      200   {object}  nfse.GerarNfseResponse
// @Failure      400   {object}  nfse.GerarNfseResponse
// @Router       /v1/nfse/gerar [post]
func (h *NFSeHandler) Gerar(c *fiber.Ctx) error {
	var in dom.GerarNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.GerarNfse(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// EnviarLote godoc
// @Summary      Enviar lote de RPS (assíncrono)
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  nfse.EnviarLoteRpsRequest  true  "Lote"
// @Success      200   {object}  nfse.EnviarLoteRpsResponse
// @Router       /v1/nfse/lote [post]
func (h *NFSeHandler) EnviarLote(c *fiber.Ctx) error {
	var in dom.EnviarLoteRpsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.EnviarLoteRps(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// EnviarLoteSincrono godoc
// @Summary      Enviar lote de RPS (síncrono)
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  nfse.EnviarLoteRpsRequest  true  "Lote"
// @Success      200   {object}  nfse.EnviarLoteRpsSincronoResponse
// @Router       /v1/nfse/lote/sincrono [post]
func (h *NFSeHandler) EnviarLoteSincrono(c *fiber.Ctx) error {
	var in dom.EnviarLoteRpsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.EnviarLoteRpsSincrono(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// SituacaoLote GET /v1/nfse/lote/:protocolo/situacao
func (h *NFSeHandler) SituacaoLote(c *fiber.Ctx) error {
	resp, err := h.svc.ConsultarSituacaoLoteRps(c.UserContext(), GetCompanyID(c), c.Params("protocolo"))
	return writeResult(c, resp, err)
}

// ConsultarLote GET /v1/nfse/lote/:protocolo
func (h *NFSeHandler) ConsultarLote(c *fiber.Ctx) error {
	resp, err := h.svc.ConsultarLoteRps(c.UserContext(), GetCompanyID(c), c.Params("protocolo"))
	return writeResult(c, resp, err)
}

// ConsultarPorRps POST /v1/nfse/consultar/rps
func (h *NFSeHandler) ConsultarPorRps(c *fiber.Ctx) error {
	var in dom.ConsultarNfsePorRpsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.ConsultarNfsePorRps(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// Consultar POST /v1/nfse/consultar
func (h *NFSeHandler) Consultar(c *fiber.Ctx) error {
	var in dom.ConsultarNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.ConsultarNfse(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// Cancelar godoc
// @Summary      Cancelar NFSe
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  nfse.CancelarNfseRequest  true  "Número e código de cancelamento"
// @Success      200   {object}  nfse.CancelarNfseResponse
// @Router       /v1/nfse/cancelar [post]
func (h *NFSeHandler) Cancelar(c *fiber.Ctx) error {
	var in dom.CancelarNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.CancelarNfse(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// Substituir POST /v1/nfse/substituir
func (h *NFSeHandler) Substituir(c *fiber.Ctx) error {
	var in dom.SubstituirNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	resp, err := h.svc.SubstituirNfse(c.UserContext(), GetCompanyID(c), in)
	return writeResult(c, resp, err)
}

// Danfse godoc
// @Summary      DANFSe em PDF a partir do XML da NFSe
// @Tags         nfse
// @Accept       json
// @Produce      application/pdf
// @Security     ApiKeyAuth
// @Param        body  body  dto.DanfseRequest  true  "XML da NFSe"
// @Success      200
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /v1/nfse/danfse [post]
func (h *NFSeHandler) Danfse(c *fiber.Ctx) error {
	var in dto.DanfseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	pdf, err := h.danfse.FromXML(c.UserContext(), in.XmlNfse)
	if err != nil {
		return writeError(c, err)
	}
	return sendPDF(c, "danfse.pdf", pdf)
}

// DanfsePorNumero GET /v1/nfse/danfse/:numero (NFSe del historial del tenant).
func (h *NFSeHandler) DanfsePorNumero(c *fiber.Ctx) error {
	numero, err := strconv.ParseInt(c.Params("numero"), 10, 64)
	if err != nil || numero <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "número da NFSe inválido"})
	}
	pdf, err := h.danfse.FromNumero(c.UserContext(), GetCompanyID(c), numero)
	if err != nil {
		return writeError(c, err)
	}
	return sendPDF(c, "danfse-"+strconv.FormatInt(numero, 10)+".pdf", pdf)
}

func sendPDF(c *fiber.Ctx, filename string, pdf []byte) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}

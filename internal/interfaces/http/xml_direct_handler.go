package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	appnfse "github.com/jhoicas/nfse-abrasf/internal/application/nfse"
)

// RawXMLProcessor envía XML ABRASF armado por el integrador.
type RawXMLProcessor interface {
	Process(ctx context.Context, companyID string, req appnfse.RawXMLRequest) (*appnfse.RawXMLResponse, error)
}

// XMLDirectHandler rutas /v1/nfse/xml.
type XMLDirectHandler struct {
	svc RawXMLProcessor
}

// NewXMLDirectHandler construye el handler.
func NewXMLDirectHandler(svc RawXMLProcessor) *XMLDirectHandler {
	return &XMLDirectHandler{svc: svc}
}

// Processar godoc
// @Summary      Enviar XML ABRASF pronto
// @Description  O XML é convertido para os namespaces do provedor, assinado e enviado.
// @Tags         xml
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  nfse.RawXMLRequest  true  "XML e método SOAP"
// @Success      200   {object}  nfse.RawXMLResponse
// @Failure      400   {object}  nfse.RawXMLResponse
// @Router       /v1/nfse/xml/processar [post]
func (h *XMLDirectHandler) Processar(c *fiber.Ctx) error {
	var in appnfse.RawXMLRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return h.process(c, in)
}

// Atalho POST /v1/nfse/xml/:atalho con el método SOAP fijo por la ruta.
// Acepta JSON (RawXMLRequest sin metodo_soap) o el XML crudo con Content-Type XML.
func (h *XMLDirectHandler) Atalho(c *fiber.Ctx) error {
	a, ok := appnfse.ResolveAtalho(c.Params("atalho"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "atalho desconhecido: " + c.Params("atalho")})
	}
	var in appnfse.RawXMLRequest
	if c.Is("xml") {
		in.XmlContent = string(c.Body())
		in.SoapAction = c.Get("SOAPAction")
	} else if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.MetodoSoap = a.Metodo.String()
	in.IsSincrono = in.IsSincrono || a.Sincrono
	return h.process(c, in)
}

func (h *XMLDirectHandler) process(c *fiber.Ctx, in appnfse.RawXMLRequest) error {
	resp, err := h.svc.Process(c.UserContext(), GetCompanyID(c), in)
	var pre *appnfse.PreflightError
	if errors.As(err, &pre) {
		return c.Status(statusOf(pre)).JSON(resp)
	}
	if err != nil {
		return writeError(c, err)
	}
	if !resp.Sucesso {
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
	return c.JSON(resp)
}

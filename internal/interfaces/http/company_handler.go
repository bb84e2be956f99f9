package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/application/usecase"
)

// CompanyHandler maneja las peticiones HTTP de administración de empresas.
type CompanyHandler struct {
	uc *usecase.CompanyUseCase
}

// NewCompanyHandler construye el handler inyectando el caso de uso.
func NewCompanyHandler(uc *usecase.CompanyUseCase) *CompanyHandler {
	return &CompanyHandler{uc: uc}
}

// Create godoc
// @Summary      Cadastrar empresa
// @Tags         empresas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.CreateCompanyRequest  true  "Dados da empresa"
// @Success      201   {object}  dto.CompanyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /v1/empresas [post]
func (h *CompanyHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateCompanyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obter empresa
// @Tags         empresas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID da empresa"
// @Success      200  {object}  dto.CompanyResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /v1/empresas/{id} [get]
func (h *CompanyHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "empresa não encontrada"})
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar empresas
// @Tags         empresas
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query  int  false  "Limite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200     {object}  dto.CompanyListResponse
// @Router       /v1/empresas [get]
func (h *CompanyHandler) List(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	if page.Limit > 100 {
		page.Limit = 100
	}
	out, err := h.uc.List(c.UserContext(), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Atualizar empresa
// @Tags         empresas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                    true  "ID da empresa"
// @Param        body  body  dto.UpdateCompanyRequest  true  "Campos a alterar"
// @Success      200   {object}  dto.CompanyResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /v1/empresas/{id} [put]
func (h *CompanyHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateCompanyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Ativar PATCH /v1/empresas/:id/ativar
func (h *CompanyHandler) Ativar(c *fiber.Ctx) error {
	return h.setAtiva(c, true)
}

// Desativar PATCH /v1/empresas/:id/desativar
func (h *CompanyHandler) Desativar(c *fiber.Ctx) error {
	return h.setAtiva(c, false)
}

func (h *CompanyHandler) setAtiva(c *fiber.Ctx, ativa bool) error {
	out, err := h.uc.SetAtiva(c.UserContext(), c.Params("id"), ativa)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// RotateAPIKey godoc
// @Summary      Gerar nova API key
// @Tags         empresas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID da empresa"
// @Success      200  {object}  dto.CompanyResponse
// @Router       /v1/empresas/{id}/api-key [post]
func (h *CompanyHandler) RotateAPIKey(c *fiber.Ctx) error {
	out, err := h.uc.RotateAPIKey(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// UploadCertificate godoc
// @Summary      Enviar certificado digital A1
// @Tags         empresas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                        true  "ID da empresa"
// @Param        body  body  dto.UploadCertificateRequest  true  "PFX em base64 e senha"
// @Success      200   {object}  dto.CertificateResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /v1/empresas/{id}/certificado [post]
func (h *CompanyHandler) UploadCertificate(c *fiber.Ctx) error {
	var in dto.UploadCertificateRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.UploadCertificate(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

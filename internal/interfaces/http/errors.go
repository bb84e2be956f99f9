package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	appnfse "github.com/jhoicas/nfse-abrasf/internal/application/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	dom "github.com/jhoicas/nfse-abrasf/internal/domain/nfse"
)

// statusOf status HTTP de un error de dominio.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrMunicipioNotSupported):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrCompanyInactive), errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrMunicipioNotSet), errors.Is(err, domain.ErrCertificateMissing),
		errors.Is(err, domain.ErrCertificateExpired), errors.Is(err, domain.ErrCertificateDecode):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// codeOf código de ErrorResponse para los errores de glue (fuera del pipeline).
func codeOf(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusBadRequest:
		return "VALIDATION"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusConflict:
		return "DUPLICATE"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	}
	return "INTERNAL"
}

// writeError responde dto.ErrorResponse. Los errores internos no exponen detalle.
func writeError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "erro interno"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: codeOf(status), Message: msg})
}

// writeResult responde una operación NFSe: el resultado canónico siempre va
// en el cuerpo; 200 si sucesso, 400 si no, y el status del pre-flight cuando
// el tenant no estaba apto.
func writeResult(c *fiber.Ctx, resp dom.Response, err error) error {
	var pre *appnfse.PreflightError
	if errors.As(err, &pre) {
		return c.Status(statusOf(pre)).JSON(resp)
	}
	if err != nil {
		return writeError(c, err)
	}
	if !resp.Base().Sucesso {
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
	return c.JSON(resp)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo da requisição inválido"})
}

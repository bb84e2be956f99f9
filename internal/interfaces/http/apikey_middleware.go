package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
)

// HeaderAPIKey header con la API key del tenant.
const HeaderAPIKey = "X-Api-Key"

// LocalCompanyID key de c.Locals con el ID del tenant autenticado.
const LocalCompanyID = "company_id"

// TenantLookup resuelve el tenant dueño de una API key. (nil, nil) si no existe.
type TenantLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*entity.Company, error)
}

// APIKeyMiddleware autentica las rutas de NFSe por X-Api-Key. Un certificado
// vencido solo se registra: el pre-flight del servicio es quien lo rechaza.
func APIKeyMiddleware(tenants TenantLookup, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get(HeaderAPIKey)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "API_KEY_AUSENTE",
				Message: "API Key não fornecida. Use o header X-Api-Key.",
			})
		}
		company, err := tenants.GetByAPIKey(c.UserContext(), apiKey)
		if err != nil {
			log.Error().Err(err).Str("request_id", GetRequestID(c)).Msg("resolver API key")
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "erro ao validar a API Key"})
		}
		if company == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "API_KEY_INVALIDA", Message: "API Key inválida."})
		}
		if !company.Ativa {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "EMPRESA_INATIVA", Message: "Esta empresa está inativa."})
		}
		if company.CertificadoExpirado(time.Now()) {
			log.Warn().
				Str("tenant", company.ID).
				Time("validade", *company.CertificadoValidade).
				Msg("certificado digital vencido")
		}
		c.Locals(LocalCompanyID, company.ID)
		return c.Next()
	}
}

// GetCompanyID devuelve el tenant autenticado por APIKeyMiddleware.
func GetCompanyID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalCompanyID).(string)
	return s
}

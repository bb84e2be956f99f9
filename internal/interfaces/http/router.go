package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-abrasf/internal/application/auth"
	"github.com/jhoicas/nfse-abrasf/internal/application/usecase"
	"github.com/jhoicas/nfse-abrasf/pkg/jwt"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName   string
	CompanyUC *usecase.CompanyUseCase
	AuthUC    *auth.AuthUseCase
	NFSe      NFSeService
	XMLDirect RawXMLProcessor
	Danfse    DanfseService
	Tenants   TenantLookup
	JWTSecret string
	Log       *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})

	v1 := app.Group("/v1")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	v1.Post("/auth/login", authHandler.Login)

	// Empresas (administrador, JWT)
	if deps.CompanyUC != nil {
		empresas := v1.Group("/empresas", AuthMiddleware(deps.JWTSecret), RequireRole(jwt.RoleAdmin))
		companyHandler := NewCompanyHandler(deps.CompanyUC)
		empresas.Post("/", companyHandler.Create)
		empresas.Get("/", companyHandler.List)
		empresas.Get("/:id", companyHandler.GetByID)
		empresas.Put("/:id", companyHandler.Update)
		empresas.Patch("/:id/ativar", companyHandler.Ativar)
		empresas.Patch("/:id/desativar", companyHandler.Desativar)
		empresas.Post("/:id/certificado", companyHandler.UploadCertificate)
		empresas.Post("/:id/api-key", companyHandler.RotateAPIKey)
	}

	// NFSe
	nfseHandler := NewNFSeHandler(deps.NFSe, deps.Danfse)
	nfse := v1.Group("/nfse")
	nfse.Get("/municipios", nfseHandler.Municipios)

	tenant := nfse.Group("/", APIKeyMiddleware(deps.Tenants, deps.Log))
	tenant.Post("/gerar", nfseHandler.Gerar)
	tenant.Post("/lote", nfseHandler.EnviarLote)
	tenant.Post("/lote/sincrono", nfseHandler.EnviarLoteSincrono)
	tenant.Get("/lote/:protocolo/situacao", nfseHandler.SituacaoLote)
	tenant.Get("/lote/:protocolo", nfseHandler.ConsultarLote)
	tenant.Post("/consultar/rps", nfseHandler.ConsultarPorRps)
	tenant.Post("/consultar", nfseHandler.Consultar)
	tenant.Post("/cancelar", nfseHandler.Cancelar)
	tenant.Post("/substituir", nfseHandler.Substituir)
	tenant.Post("/danfse", nfseHandler.Danfse)
	tenant.Get("/danfse/:numero", nfseHandler.DanfsePorNumero)

	xmlHandler := NewXMLDirectHandler(deps.XMLDirect)
	tenant.Post("/xml/processar", xmlHandler.Processar)
	tenant.Post("/xml/:atalho", xmlHandler.Atalho)
}

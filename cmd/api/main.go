package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/nfse-abrasf/internal/application/auth"
	appnfse "github.com/jhoicas/nfse-abrasf/internal/application/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/application/usecase"
	infranfse "github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/signer"
	infrapdf "github.com/jhoicas/nfse-abrasf/internal/infrastructure/pdf"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/nfse-abrasf/internal/interfaces/http"
	"github.com/jhoicas/nfse-abrasf/pkg/config"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
	"github.com/jhoicas/nfse-abrasf/pkg/secret"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración del esquema")
	}

	key, err := cfg.Admin.EncryptionKey()
	if err != nil {
		log.Fatal().Err(err).Msg("llave de cifrado de certificados")
	}
	box, err := secret.NewBox(key)
	if err != nil {
		log.Fatal().Err(err).Msg("llave de cifrado de certificados")
	}

	companyRepo := postgres.NewCompanyRepository(pool)
	certStore := postgres.NewCertificateStore(pool, box)
	emissaoRepo := postgres.NewEmissaoRepository(pool)

	// Pipeline NFSe: registry → XML → firma → SOAP (mTLS) → retorno canónico
	registry := provider.DefaultRegistry()
	soapClient := infranfse.NewSOAPClient(infranfse.SOAPClientConfig{
		Timeout:          cfg.NFSe.Timeout(),
		MaxResponseBytes: cfg.NFSe.MaxResponseBytes,
	})
	nfseSvc := appnfse.NewService(
		companyRepo, certStore, emissaoRepo,
		registry, signer.NewDigitalSignatureService(), soapClient, log,
	).WithTxRunner(postgres.NewTxRunner(pool))
	xmlDirectSvc := appnfse.NewXMLDirectService(nfseSvc)
	danfseUC := appnfse.NewDanfseUseCase(infrapdf.NewDanfseGenerator(), emissaoRepo)

	companyUC := usecase.NewCompanyUseCase(companyRepo, certStore)
	authUC := auth.NewAuthUseCase(cfg.Admin.PasswordHash, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	if cfg.Admin.PasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH vacío: login administrativo deshabilitado")
	}

	// Timeout de escritura por encima del timeout SOAP: la prefeitura puede tardar.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.NFSe.Timeout() + 10*time.Second,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 << 20,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestID())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "NFSe ABRASF API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		AppName:   cfg.App.Name,
		CompanyUC: companyUC,
		AuthUC:    authUC,
		NFSe:      nfseSvc,
		XMLDirect: xmlDirectSvc,
		Danfse:    danfseUC,
		Tenants:   companyUC,
		JWTSecret: cfg.JWT.Secret,
		Log:       log.Component("auth"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.NFSe.Timeout()+5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

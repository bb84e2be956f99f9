// seed da de alta una empresa de homologação para desarrollo local y,
// opcionalmente, le carga el certificado A1. Imprime la API key generada.
//
// Uso: go run ./cmd/seed -cnpj 11222333000181 -im 123456 [-pfx cert.pfx -password x]
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/application/usecase"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/provider"
	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/postgres"
	"github.com/jhoicas/nfse-abrasf/pkg/config"
	"github.com/jhoicas/nfse-abrasf/pkg/logger"
	"github.com/jhoicas/nfse-abrasf/pkg/secret"
)

func main() {
	cnpj := flag.String("cnpj", "", "CNPJ del prestador")
	razao := flag.String("razao", "Empresa de Homologação Ltda", "razão social")
	im := flag.String("im", "", "inscrição municipal")
	municipio := flag.String("municipio", provider.CodigoSantos, "código IBGE del municipio")
	pfxPath := flag.String("pfx", "", "certificado A1 (.pfx/.p12), opcional")
	password := flag.String("password", "", "senha del PFX")
	flag.Parse()

	if *cnpj == "" || *im == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

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

	uc := usecase.NewCompanyUseCase(postgres.NewCompanyRepository(pool), postgres.NewCertificateStore(pool, box))
	company, err := uc.Create(ctx, dto.CreateCompanyRequest{
		CNPJ:               *cnpj,
		RazaoSocial:        *razao,
		InscricaoMunicipal: *im,
		CodigoMunicipio:    *municipio,
		TipoAmbiente:       "2",
	})
	if errors.Is(err, domain.ErrDuplicate) {
		log.Fatal().Str("cnpj", *cnpj).Msg("ya existe una empresa con ese CNPJ")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("alta de la empresa")
	}
	log.Info().Str("id", company.ID).Str("cnpj", company.CNPJ).Msg("empresa creada")

	if *pfxPath != "" {
		pfx, err := os.ReadFile(*pfxPath)
		if err != nil {
			log.Fatal().Err(err).Msg("leer PFX")
		}
		info, err := uc.UploadCertificate(ctx, company.ID, dto.UploadCertificateRequest{
			CertificadoBase64: base64.StdEncoding.EncodeToString(pfx),
			Senha:             *password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("cargar certificado")
		}
		log.Info().Str("titular", info.Titular).Time("validade", info.Validade).Msg("certificado cargado")
	}

	fmt.Printf("X-Api-Key: %s\n", company.APIKey)
}

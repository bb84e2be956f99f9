package repository

import (
	"context"

	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company (DIP).
// La implementación vive en infrastructure. GetBy* devuelve (nil, nil) si no existe.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetByCNPJ(ctx context.Context, cnpj string) (*entity.Company, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
	List(ctx context.Context, limit, offset int) ([]*entity.Company, int, error)
	Delete(ctx context.Context, id string) error
}

// CertificateStore guarda el PFX de cada empresa con la senha cifrada en reposo.
// GetCertificate devuelve la senha ya descifrada; el llamador no debe retenerla
// más allá de la operación en curso.
type CertificateStore interface {
	GetCertificate(ctx context.Context, companyID string) (pfx []byte, passphrase string, err error)
	SaveCertificate(ctx context.Context, companyID string, pfx []byte, passphrase string, info entity.CertificateInfo) error
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/internal/domain/entity"
	"github.com/jhoicas/nfse-abrasf/internal/domain/repository"
	"github.com/jhoicas/nfse-abrasf/pkg/secret"
)

var _ repository.CertificateStore = (*CertificateStore)(nil)

// CertificateStore guarda el PFX en empresas.certificado_pfx y la senha sellada
// con secret.Box. La senha solo se abre dentro de GetCertificate.
type CertificateStore struct {
	q   Querier
	box *secret.Box
}

// NewCertificateStore construye el store con la caja de cifrado.
func NewCertificateStore(q Querier, box *secret.Box) *CertificateStore {
	return &CertificateStore{q: q, box: box}
}

// GetCertificate devuelve el PFX y la senha descifrada.
// Sin PFX cargado devuelve domain.ErrCertificateMissing.
func (s *CertificateStore) GetCertificate(ctx context.Context, companyID string) ([]byte, string, error) {
	var (
		pfx    []byte
		sealed *string
	)
	err := s.q.QueryRow(ctx,
		`SELECT certificado_pfx, certificado_senha FROM empresas WHERE id = $1`, companyID,
	).Scan(&pfx, &sealed)
	if err != nil {
		if isNoRows(err) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get certificado: %w", err)
	}
	if len(pfx) == 0 {
		return nil, "", domain.ErrCertificateMissing
	}
	var senha string
	if sealed != nil {
		if senha, err = s.box.Open(*sealed); err != nil {
			return nil, "", fmt.Errorf("%w: %w", domain.ErrCertificateDecode, err)
		}
	}
	return pfx, senha, nil
}

// SaveCertificate reemplaza el certificado de la empresa y sus metadatos.
func (s *CertificateStore) SaveCertificate(ctx context.Context, companyID string, pfx []byte, passphrase string, info entity.CertificateInfo) error {
	sealed, err := s.box.Seal(passphrase)
	if err != nil {
		return err
	}
	const query = `
		UPDATE empresas SET certificado_pfx = $2, certificado_senha = $3, certificado_validade = $4,
			certificado_titular = $5, certificado_emissor = $6, updated_at = $7
		WHERE id = $1`
	cmd, err := s.q.Exec(ctx, query, companyID, pfx, sealed, info.Validade, info.Titular, info.Emissor, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save certificado: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/pkg/jwt"
)

// adminSubject sujeto de los tokens administrativos.
const adminSubject = "admin"

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase login del administrador: una sola credencial cuyo hash bcrypt
// llega por configuración (ADMIN_PASSWORD_HASH).
type AuthUseCase struct {
	passwordHash []byte
	jwtCfg       JWTConfig
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(passwordHash string, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{passwordHash: []byte(passwordHash), jwtCfg: jwtCfg}
}

// Login verifica la senha del administrador y emite un JWT con rol admin.
// Sin hash configurado el login queda deshabilitado (domain.ErrForbidden).
func (uc *AuthUseCase) Login(in dto.LoginRequest) (*dto.LoginResponse, error) {
	if len(uc.passwordHash) == 0 {
		return nil, domain.ErrForbidden
	}
	if in.Password == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(uc.passwordHash, []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, adminSubject, jwt.RoleAdmin, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, ExpiresIn: uc.jwtCfg.ExpMinutes * 60}, nil
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/nfse-abrasf/internal/application/dto"
	"github.com/jhoicas/nfse-abrasf/internal/domain"
	"github.com/jhoicas/nfse-abrasf/pkg/jwt"
)

const testSecret = "test-secret-key-for-unit-tests"

func newAuth(t *testing.T, password string) *AuthUseCase {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthUseCase(string(hash), JWTConfig{Secret: testSecret, ExpMinutes: 60, Issuer: "nfse-abrasf-test"})
}

func TestLogin_Exitoso(t *testing.T) {
	uc := newAuth(t, "s3nha-forte")

	out, err := uc.Login(dto.LoginRequest{Password: "s3nha-forte"})
	require.NoError(t, err)
	assert.Equal(t, 3600, out.ExpiresIn)

	subject, role, err := jwt.Parse(testSecret, out.Token)
	require.NoError(t, err, "el token emitido debe validarse con el mismo secret")
	assert.Equal(t, "admin", subject)
	assert.Equal(t, jwt.RoleAdmin, role)
}

func TestLogin_Rechazos(t *testing.T) {
	uc := newAuth(t, "s3nha-forte")

	_, err := uc.Login(dto.LoginRequest{Password: "errada"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Login(dto.LoginRequest{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_SinHashConfigurado(t *testing.T) {
	uc := NewAuthUseCase("", JWTConfig{Secret: testSecret, ExpMinutes: 60})
	_, err := uc.Login(dto.LoginRequest{Password: "qualquer"})
	assert.ErrorIs(t, err, domain.ErrForbidden, "sin ADMIN_PASSWORD_HASH el login queda deshabilitado")
}

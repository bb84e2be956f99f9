package dto

// LoginRequest credencial del administrador.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse token JWT del administrador.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // segundos
}

package handler

import "time"

type loginRequest struct {
	Email    string `json:"email" example:"ana@99minutos.com"`
	Password string `json:"password" example:"s3cret"`
}

type cpfLoginRequest struct {
	CPF string `json:"cpf" example:"111.444.777-35"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// meResponse is the authenticated caller as seen through its access token.
type meResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	ClientID   string    `json:"client_id,omitempty"`
	EmployeeID string    `json:"employee_id,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

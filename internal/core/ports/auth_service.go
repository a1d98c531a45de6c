package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// AuthService is the use-case surface exposed to the transport layer. callerID
// identifies the requester for rate limiting (typically the source address).
type AuthService interface {
	Login(ctx context.Context, callerID, email, password string) (*domain.AuthResult, error)
	LoginByCPF(ctx context.Context, callerID, cpf string) (*domain.AuthResult, error)
	Refresh(ctx context.Context, callerID, refreshToken string) (*domain.AuthResult, error)
	Logout(ctx context.Context, callerID, refreshToken string) error
}

// AccessTokenVerifier is what the transport needs to authenticate bearer tokens.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*domain.AccessTokenClaims, error)
}

// AuditRecorder receives orchestrator outcomes. Record must not block.
type AuditRecorder interface {
	Record(event domain.AuthEvent)
}

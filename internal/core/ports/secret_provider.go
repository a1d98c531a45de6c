package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// SecretProvider fetches the token signing secret and expiry configuration.
type SecretProvider interface {
	SigningMaterial(ctx context.Context) (domain.SigningMaterial, error)
}

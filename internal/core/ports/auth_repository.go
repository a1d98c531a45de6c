package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// IdentityRepository resolves users and CPF clients from the user store.
type IdentityRepository interface {
	// FindByEmail returns domain.ErrUserNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	// FindClientByCPF expects the normalised 11-digit form and returns
	// domain.ErrCPFNotFound when no client matches.
	FindClientByCPF(ctx context.Context, cpf string) (*domain.Client, error)
	// FindLinkedUser returns the active user linked to a client or employee id,
	// or domain.ErrUserNotFound.
	FindLinkedUser(ctx context.Context, clientOrEmployeeID string) (*domain.Identity, error)
}

// RefreshTokenRepository persists issued refresh tokens.
type RefreshTokenRepository interface {
	Save(ctx context.Context, rec *domain.RefreshTokenRecord) error
	// FindValid returns domain.ErrInvalidRefreshToken unless the token exists
	// and is unexpired.
	FindValid(ctx context.Context, token string) (*domain.RefreshTokenRecord, error)
	// Delete is idempotent: deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error
	DeleteAllFor(ctx context.Context, subjectID string) error
	// Rotate consumes oldToken and stores next. It returns
	// domain.ErrInvalidRefreshToken when oldToken was already consumed or
	// expired, so at most one concurrent rotation of a token succeeds.
	Rotate(ctx context.Context, oldToken string, next *domain.RefreshTokenRecord) error
}

// AuditRepository appends auth events to the audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuthEvent) error
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// CredentialVerifier resolves identities from the user store and checks
// their credentials.
type CredentialVerifier struct {
	repo      ports.IdentityRepository
	dummyHash []byte
	log       zerolog.Logger
}

// NewCredentialVerifier precomputes a bcrypt hash of a random secret at the
// given cost. It is compared against on lookup misses so a missing email costs
// the same as a wrong password. cost should match the cost of stored hashes.
func NewCredentialVerifier(repo ports.IdentityRepository, cost int, log zerolog.Logger) (*CredentialVerifier, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("dummy hash seed: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed)), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &CredentialVerifier{repo: repo, dummyHash: dummy, log: log}, nil
}

// VerifyEmailPassword returns the identity owning email when password matches.
// Every credential failure is domain.ErrInvalidCredentials; the precise
// reason only reaches the server log.
func (v *CredentialVerifier) VerifyEmailPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := v.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.Internal(fmt.Errorf("find identity by email: %w", err))
		}
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
		v.log.Debug().Str("reason", "unknown_email").Msg("credential check failed")
		return nil, domain.ErrInvalidCredentials
	}

	hash := []byte(id.PasswordHash)
	if len(hash) == 0 {
		hash = v.dummyHash
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || len(id.PasswordHash) == 0 {
		v.log.Debug().Str("user_id", id.ID).Str("reason", "wrong_password").Msg("credential check failed")
		return nil, domain.ErrInvalidCredentials
	}
	if !id.Active {
		v.log.Debug().Str("user_id", id.ID).Str("reason", "inactive").Msg("credential check failed")
		return nil, domain.ErrInvalidCredentials
	}
	return id, nil
}

// VerifyCPF resolves the active user linked to the client holding cpf. The
// cpf must already be validated and normalised. CPF login is an
// identification flow, so the two not-found cases stay distinguishable.
func (v *CredentialVerifier) VerifyCPF(ctx context.Context, cpf string) (*domain.Identity, error) {
	client, err := v.repo.FindClientByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, domain.ErrCPFNotFound) {
			return nil, domain.ErrCPFNotFound
		}
		return nil, domain.Internal(fmt.Errorf("find client by cpf: %w", err))
	}

	id, err := v.linkedUser(ctx, client)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(fmt.Errorf("find linked user: %w", err))
	}
	if !id.Active {
		return nil, domain.ErrUserNotFound
	}
	return id, nil
}

// linkedUser prefers the client's explicit user link and falls back to the
// user whose client or employee reference names the client. A stale or
// inactive explicit link does not hide a valid reference link.
func (v *CredentialVerifier) linkedUser(ctx context.Context, client *domain.Client) (*domain.Identity, error) {
	if client.LinkedUserID != "" {
		id, err := v.repo.FindByID(ctx, client.LinkedUserID)
		switch {
		case err == nil && id.Active:
			return id, nil
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}
		v.log.Debug().Str("client_id", client.ID).Msg("client user link is stale, trying reference link")
	}
	return v.repo.FindLinkedUser(ctx, client.ID)
}

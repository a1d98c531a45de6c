package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/validate"
	"github.com/99minutos/auth-service/pkg/logger"
)

const (
	maxPasswordBytes = 72 // bcrypt input limit
	unknownCaller    = "unknown"
)

// TokenIssuer abstracts the token service.
type TokenIssuer interface {
	IssueAccessToken(id *domain.Identity) (string, error)
	IssueRefreshToken(subjectID string) (*domain.IssuedRefreshToken, error)
	VerifyRefreshToken(token string) (string, error)
	AccessTokenLifetimeSeconds() int
}

// AuthOption configures optional AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuditRecorder sends every outcome to rec.
func WithAuditRecorder(rec ports.AuditRecorder) AuthOption {
	return func(s *AuthService) { s.audit = rec }
}

// WithCPFRateLimit toggles rate limiting of CPF logins. It is on by default:
// CPF login carries no secret, but an unthrottled endpoint lets callers enumerate
// which CPFs are registered.
func WithCPFRateLimit(enabled bool) AuthOption {
	return func(s *AuthService) { s.limitCPF = enabled }
}

// AuthService implements login by email, login by CPF, refresh and logout.
// Each call is a sequential pipeline; only the limiter holds state across calls.
type AuthService struct {
	identities    ports.IdentityRepository
	refreshTokens ports.RefreshTokenRepository
	tokens        TokenIssuer
	limiter       ports.RateLimiter
	verifier      *CredentialVerifier
	audit         ports.AuditRecorder
	limitCPF      bool
	now           func() time.Time
	log           zerolog.Logger
}

func NewAuthService(
	identities ports.IdentityRepository,
	refreshTokens ports.RefreshTokenRepository,
	tokens TokenIssuer,
	limiter ports.RateLimiter,
	verifier *CredentialVerifier,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		identities:    identities,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		limiter:       limiter,
		verifier:      verifier,
		limitCPF:      true,
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.AuthService = (*AuthService)(nil)

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, callerID, email, password string) (*domain.AuthResult, error) {
	var subjectID string
	res, err := func() (*domain.AuthResult, error) {
		if err := s.gate(ctx, callerID); err != nil {
			return nil, err
		}

		email = strings.ToLower(strings.TrimSpace(email))
		if !validate.Email(email) {
			return nil, domain.NewValidationError("invalid email format")
		}
		if password == "" {
			return nil, domain.NewValidationError("password is required")
		}
		if len(password) > maxPasswordBytes {
			return nil, domain.NewValidationError("password is too long")
		}

		id, err := s.verifier.VerifyEmailPassword(ctx, email, password)
		if err != nil {
			return nil, err
		}
		subjectID = id.ID
		return s.issuePair(ctx, id)
	}()
	return res, s.finish(domain.OpLogin, callerID, subjectID, err)
}

// LoginByCPF authenticates the user linked to a client's CPF.
func (s *AuthService) LoginByCPF(ctx context.Context, callerID, cpf string) (*domain.AuthResult, error) {
	var subjectID string
	res, err := func() (*domain.AuthResult, error) {
		if s.limitCPF {
			if err := s.gate(ctx, callerID); err != nil {
				return nil, err
			}
		}

		if !validate.CPF(cpf) {
			return nil, domain.NewValidationError("invalid cpf")
		}

		id, err := s.verifier.VerifyCPF(ctx, validate.NormalizeCPF(cpf))
		if err != nil {
			return nil, err
		}
		subjectID = id.ID
		return s.issuePair(ctx, id)
	}()
	return res, s.finish(domain.OpLoginCPF, callerID, subjectID, err)
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// is consumed: a second refresh with it fails with ErrInvalidRefreshToken.
// Refresh does not consume rate limit budget.
func (s *AuthService) Refresh(ctx context.Context, callerID, refreshToken string) (*domain.AuthResult, error) {
	var subjectID string
	res, err := func() (*domain.AuthResult, error) {
		if !validate.RefreshTokenShape(refreshToken) {
			return nil, domain.NewValidationError("malformed refresh token")
		}

		sub, err := s.tokens.VerifyRefreshToken(refreshToken)
		if err != nil {
			return nil, err
		}
		subjectID = sub

		rec, err := s.refreshTokens.FindValid(ctx, refreshToken)
		if err != nil {
			return nil, storeErr("find refresh token", err)
		}
		if rec.SubjectID != sub {
			return nil, domain.ErrInvalidRefreshToken
		}

		id, err := s.identities.FindByID(ctx, sub)
		if err == nil && !id.Active {
			err = domain.ErrUserNotFound
		}
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				if delErr := s.refreshTokens.Delete(ctx, refreshToken); delErr != nil {
					s.log.Warn().Err(delErr).
						Str("user_id", sub).
						Str("token", logger.TokenFingerprint(refreshToken)).
						Msg("failed to revoke orphaned refresh token")
				}
				return nil, domain.ErrUserNotFound
			}
			return nil, domain.Internal(fmt.Errorf("find identity by id: %w", err))
		}

		access, err := s.tokens.IssueAccessToken(id)
		if err != nil {
			return nil, err
		}
		next, err := s.tokens.IssueRefreshToken(id.ID)
		if err != nil {
			return nil, err
		}
		err = s.refreshTokens.Rotate(ctx, refreshToken, &domain.RefreshTokenRecord{
			Token:     next.Token,
			SubjectID: id.ID,
			IssuedAt:  next.IssuedAt,
			ExpiresAt: next.ExpiresAt,
		})
		if err != nil {
			return nil, storeErr("rotate refresh token", err)
		}
		return s.result(id, access, next.Token), nil
	}()
	return res, s.finish(domain.OpRefresh, callerID, subjectID, err)
}

// Logout revokes refreshToken. Revoking an absent token succeeds. The
// signature is not checked so expired tokens can still be revoked.
func (s *AuthService) Logout(ctx context.Context, callerID, refreshToken string) error {
	err := func() error {
		if !validate.RefreshTokenShape(refreshToken) {
			return domain.NewValidationError("malformed refresh token")
		}
		if err := s.refreshTokens.Delete(ctx, refreshToken); err != nil {
			return domain.Internal(fmt.Errorf("delete refresh token: %w", err))
		}
		s.log.Debug().Str("token", logger.TokenFingerprint(refreshToken)).Msg("refresh token revoked")
		return nil
	}()
	return s.finish(domain.OpLogout, callerID, "", err)
}

// LogoutAll revokes every refresh token issued to subjectID.
func (s *AuthService) LogoutAll(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return domain.NewValidationError("subject id is required")
	}
	if err := s.refreshTokens.DeleteAllFor(ctx, subjectID); err != nil {
		s.log.Error().Err(err).Str("user_id", subjectID).Msg("failed to revoke refresh tokens")
		return domain.Internal(fmt.Errorf("delete refresh tokens: %w", err))
	}
	s.log.Info().Str("user_id", subjectID).Msg("all refresh tokens revoked")
	return nil
}

// gate consumes one attempt of callerID's budget.
func (s *AuthService) gate(ctx context.Context, callerID string) error {
	if callerID == "" {
		callerID = unknownCaller
	}
	allowed, err := s.limiter.CheckAndRecord(ctx, callerID)
	if err != nil {
		return domain.Internal(fmt.Errorf("rate limiter: %w", err))
	}
	if allowed {
		return nil
	}

	var retryAfter time.Duration
	if reset, ok, err := s.limiter.ResetTime(ctx, callerID); err == nil && ok {
		retryAfter = reset.Sub(s.now())
	}
	return domain.RateLimited(retryAfter)
}

func (s *AuthService) issuePair(ctx context.Context, id *domain.Identity) (*domain.AuthResult, error) {
	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(id.ID)
	if err != nil {
		return nil, err
	}
	err = s.refreshTokens.Save(ctx, &domain.RefreshTokenRecord{
		Token:     refresh.Token,
		SubjectID: id.ID,
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("save refresh token: %w", err))
	}
	return s.result(id, access, refresh.Token), nil
}

func (s *AuthService) result(id *domain.Identity, access, refresh string) *domain.AuthResult {
	return &domain.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTokenLifetimeSeconds(),
		TokenType:    domain.TokenTypeBearer,
		User:         id.Public(),
	}
}

// finish logs and audits the outcome of op and returns err unchanged.
func (s *AuthService) finish(op domain.AuthOperation, callerID, subjectID string, err error) error {
	outcome := "success"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}

	switch {
	case err == nil:
		s.log.Info().Str("op", string(op)).Str("user_id", subjectID).Msg("auth succeeded")
	case domain.KindOf(err) == domain.KindInternal:
		s.log.Error().Err(err).Str("op", string(op)).Str("caller", callerID).Msg("auth failed")
	default:
		s.log.Info().Str("op", string(op)).Str("caller", callerID).Str("outcome", outcome).Msg("auth rejected")
	}

	if s.audit != nil {
		s.audit.Record(domain.AuthEvent{
			ID:         uuid.NewString(),
			Operation:  op,
			Outcome:    outcome,
			CallerID:   callerID,
			SubjectID:  subjectID,
			OccurredAt: s.now().UTC(),
		})
	}
	return err
}

// storeErr passes domain errors from a repository through and hides the rest.
func storeErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(fmt.Errorf("%s: %w", op, err))
}

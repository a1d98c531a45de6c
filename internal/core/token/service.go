// Package token issues and verifies HS256-signed access and refresh tokens.
//
// Access tokens are self-contained and never stored. Refresh tokens carry only
// the subject, a kind marker and a unique id; their revocation state lives in
// the refresh token repository.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const issuer = "99minutos-auth"

var errEmptySecret = errors.New("token: signing secret is empty")

type accessClaims struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ClientRef   string `json:"client_id,omitempty"`
	EmployeeRef string `json:"employee_id,omitempty"`
	Type        string `json:"type"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Service is immutable after construction and safe for concurrent use.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService builds a Service from the secret store's material. An empty
// secret is rejected; malformed expiries fall back to the defaults.
func NewService(m domain.SigningMaterial) (*Service, error) {
	if m.Secret == "" {
		return nil, errEmptySecret
	}
	return &Service{
		secret:     []byte(m.Secret),
		accessTTL:  ParseExpiry(m.AccessExpiry, DefaultAccessTTL),
		refreshTTL: ParseExpiry(m.RefreshExpiry, DefaultRefreshTTL),
		now:        time.Now,
	}, nil
}

// AccessTokenLifetimeSeconds is the expires_in value reported to clients.
func (s *Service) AccessTokenLifetimeSeconds() int {
	return int(s.accessTTL / time.Second)
}

// IssueAccessToken signs the identity's public fields for the access lifetime.
func (s *Service) IssueAccessToken(id *domain.Identity) (string, error) {
	now := s.now()
	claims := accessClaims{
		Email:       id.Email,
		Name:        id.DisplayName,
		Role:        id.Role,
		ClientRef:   id.ClientRef,
		EmployeeRef: id.EmployeeRef,
		Type:        domain.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return s.sign(claims)
}

// IssueRefreshToken signs a refresh token for subjectID. ExpiresAt is computed
// from the same clock reading as the signed exp claim, at full precision.
func (s *Service) IssueRefreshToken(subjectID string) (*domain.IssuedRefreshToken, error) {
	now := s.now()
	expiresAt := now.Add(s.refreshTTL)
	claims := refreshClaims{
		Type: domain.TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := s.sign(claims)
	if err != nil {
		return nil, err
	}
	return &domain.IssuedRefreshToken{Token: signed, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// VerifyAccessToken returns the claims of a valid, unexpired access token.
// Failures are reported only as ErrTokenExpired, ErrTokenInvalid,
// ErrWrongTokenKind or ErrTokenError.
func (s *Service) VerifyAccessToken(tokenStr string) (*domain.AccessTokenClaims, error) {
	var c accessClaims
	if err := s.parse(tokenStr, &c); err != nil {
		return nil, err
	}
	if c.Type != domain.TokenKindAccess {
		return nil, domain.ErrWrongTokenKind
	}
	if c.Subject == "" || c.IssuedAt == nil {
		return nil, domain.ErrTokenInvalid
	}
	return &domain.AccessTokenClaims{
		SubjectID:   c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		Role:        c.Role,
		ClientRef:   c.ClientRef,
		EmployeeRef: c.EmployeeRef,
		IssuedAt:    c.IssuedAt.Time,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

// VerifyRefreshToken checks signature, expiry and kind, and returns the subject.
// It says nothing about revocation.
func (s *Service) VerifyRefreshToken(tokenStr string) (string, error) {
	var c refreshClaims
	if err := s.parse(tokenStr, &c); err != nil {
		return "", err
	}
	if c.Type != domain.TokenKindRefresh {
		return "", domain.ErrWrongTokenKind
	}
	if c.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return c.Subject, nil
}

func (s *Service) sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", domain.Internal(err)
	}
	return signed, nil
}

func (s *Service) parse(tokenStr string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrTokenInvalid
	default:
		return domain.ErrTokenError
	}
}

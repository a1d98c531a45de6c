package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ratelimit"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/core/token"
)

type noUsers struct{}

func (noUsers) FindByEmail(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrUserNotFound
}

func (noUsers) FindByID(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrUserNotFound
}

func (noUsers) FindClientByCPF(context.Context, string) (*domain.Client, error) {
	return nil, domain.ErrCPFNotFound
}

func (noUsers) FindLinkedUser(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrUserNotFound
}

type noRefreshTokens struct{}

func (noRefreshTokens) Save(context.Context, *domain.RefreshTokenRecord) error { return nil }

func (noRefreshTokens) FindValid(context.Context, string) (*domain.RefreshTokenRecord, error) {
	return nil, domain.ErrInvalidRefreshToken
}

func (noRefreshTokens) Delete(context.Context, string) error       { return nil }
func (noRefreshTokens) DeleteAllFor(context.Context, string) error { return nil }

func (noRefreshTokens) Rotate(context.Context, string, *domain.RefreshTokenRecord) error {
	return domain.ErrInvalidRefreshToken
}

// newLimitedRouter wires the real AuthService and in-memory limiter behind a
// router with its own metrics registry.
func newLimitedRouter(t *testing.T, extractor echo.IPExtractor) *echo.Echo {
	t.Helper()
	tokens, err := token.NewService(domain.SigningMaterial{Secret: "secret", AccessExpiry: "1m", RefreshExpiry: "1h"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	verifier, err := service.NewCredentialVerifier(noUsers{}, bcrypt.MinCost, zerolog.Nop())
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	svc := service.NewAuthService(noUsers{}, noRefreshTokens{}, tokens, ratelimit.New(ratelimit.Config{}), verifier, zerolog.Nop())
	return NewRouter(Dependencies{
		AuthService: svc,
		Verifier:    tokens,
		Log:         zerolog.Nop(),
		IPExtractor: extractor,
		Registerer:  prometheus.NewRegistry(),
	})
}

func login(e *echo.Echo, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_LoginLimitIgnoresForwardedHeaders(t *testing.T) {
	e := newLimitedRouter(t, nil)

	for i := 1; i <= ratelimit.DefaultMaxAttempts+1; i++ {
		rec := login(e, "203.0.113.9:5555", map[string]string{
			echo.HeaderXForwardedFor: fmt.Sprintf("10.0.0.%d", i),
			echo.HeaderXRealIP:       fmt.Sprintf("10.0.1.%d", i),
		})
		want := http.StatusUnauthorized
		if i > ratelimit.DefaultMaxAttempts {
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d: %s", i, want, rec.Code, rec.Body.String())
		}
	}

	// A different peer still has its own budget.
	if rec := login(e, "203.0.113.10:5555", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("other peer: expected 401, got %d", rec.Code)
	}
}

func TestRouter_LoginLimitBehindTrustedProxy(t *testing.T) {
	extractor, err := NewIPExtractor([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	e := newLimitedRouter(t, extractor)

	// Distinct clients behind the same proxy are counted separately.
	for i := 1; i <= ratelimit.DefaultMaxAttempts+1; i++ {
		rec := login(e, "10.1.1.1:443", map[string]string{
			echo.HeaderXForwardedFor: fmt.Sprintf("198.51.100.%d", i),
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("client %d: expected 401, got %d", i, rec.Code)
		}
	}

	// One client behind the proxy is limited.
	for i := 1; i <= ratelimit.DefaultMaxAttempts; i++ {
		login(e, "10.1.1.1:443", map[string]string{echo.HeaderXForwardedFor: "198.51.100.200"})
	}
	rec := login(e, "10.1.1.1:443", map[string]string{echo.HeaderXForwardedFor: "198.51.100.200"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestNewIPExtractor(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		want    string
	}{
		{name: "direct ignores header", remote: "203.0.113.9:1234", xff: "198.51.100.1", want: "203.0.113.9"},
		{name: "trusted cidr", trusted: []string{"10.0.0.0/8"}, remote: "10.1.1.1:1234", xff: "198.51.100.1", want: "198.51.100.1"},
		{name: "trusted single ip", trusted: []string{"192.0.2.5"}, remote: "192.0.2.5:1234", xff: "198.51.100.1", want: "198.51.100.1"},
		{name: "untrusted peer", trusted: []string{"10.0.0.0/8"}, remote: "203.0.113.9:1234", xff: "198.51.100.1", want: "203.0.113.9"},
		{name: "private peer not trusted implicitly", trusted: []string{"192.0.2.0/24"}, remote: "172.16.0.1:1234", xff: "198.51.100.1", want: "172.16.0.1"},
		{name: "spoofed hop before trusted proxy", trusted: []string{"10.0.0.0/8"}, remote: "10.1.1.1:1234", xff: "1.2.3.4, 198.51.100.1", want: "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extract, err := NewIPExtractor(tt.trusted)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set(echo.HeaderXForwardedFor, tt.xff)
			if got := extract(req); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewIPExtractor_RejectsInvalidProxy(t *testing.T) {
	for _, p := range []string{"not-an-ip", "10.0.0.0/33"} {
		if _, err := NewIPExtractor([]string{p}); err == nil {
			t.Fatalf("%q: expected error", p)
		}
	}
}

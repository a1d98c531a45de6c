package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/middleware"
	"github.com/99minutos/auth-service/internal/core/domain"
)

type stubAuthService struct {
	loginFn    func(ctx context.Context, callerID, email, password string) (*domain.AuthResult, error)
	loginCPFFn func(ctx context.Context, callerID, cpf string) (*domain.AuthResult, error)
	refreshFn  func(ctx context.Context, callerID, token string) (*domain.AuthResult, error)
	logoutFn   func(ctx context.Context, callerID, token string) error
}

func (s *stubAuthService) Login(ctx context.Context, callerID, email, password string) (*domain.AuthResult, error) {
	return s.loginFn(ctx, callerID, email, password)
}

func (s *stubAuthService) LoginByCPF(ctx context.Context, callerID, cpf string) (*domain.AuthResult, error) {
	return s.loginCPFFn(ctx, callerID, cpf)
}

func (s *stubAuthService) Refresh(ctx context.Context, callerID, token string) (*domain.AuthResult, error) {
	return s.refreshFn(ctx, callerID, token)
}

func (s *stubAuthService) Logout(ctx context.Context, callerID, token string) error {
	return s.logoutFn(ctx, callerID, token)
}

func sampleResult() *domain.AuthResult {
	return &domain.AuthResult{
		AccessToken:  "access.jwt.sig",
		RefreshToken: "refresh.jwt.sig",
		ExpiresIn:    900,
		TokenType:    domain.TokenTypeBearer,
		User: domain.PublicUser{
			ID:        "u-alice",
			Email:     "alice@example.com",
			Name:      "Alice",
			Role:      domain.RoleClient,
			ClientRef: "c-alice",
		},
	}
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, callerID, email, password string) (*domain.AuthResult, error) {
			if callerID != "203.0.113.7" {
				t.Fatalf("expected caller from X-Real-IP, got %q", callerID)
			}
			if email != "alice@example.com" || password != "s3cret" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return sampleResult(), nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"s3cret"}`)

	if err := NewAuthHandler(stub).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["access_token"] != "access.jwt.sig" || resp["refresh_token"] != "refresh.jwt.sig" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
	if resp["token_type"] != "Bearer" || resp["expires_in"] != float64(900) {
		t.Fatalf("unexpected token metadata: %+v", resp)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["id"] != "u-alice" || user["client_id"] != "c-alice" {
		t.Fatalf("unexpected user payload: %+v", resp["user"])
	}
	if _, leaked := user["employee_id"]; leaked {
		t.Fatalf("empty employee_id should be omitted")
	}
}

func TestAuthHandler_Login_PropagatesDomainError(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string, string) (*domain.AuthResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	c, _ := newContext(http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"bad"}`)

	err := NewAuthHandler(stub).Login(c)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string, string) (*domain.AuthResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/v1/auth/login", "{")

	err := NewAuthHandler(stub).Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_LoginCPF(t *testing.T) {
	stub := &stubAuthService{
		loginCPFFn: func(_ context.Context, _ string, cpf string) (*domain.AuthResult, error) {
			if cpf != "111.444.777-35" {
				t.Fatalf("handler must pass the cpf through untouched, got %q", cpf)
			}
			return sampleResult(), nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/auth/login/cpf", `{"cpf":"111.444.777-35"}`)

	if err := NewAuthHandler(stub).LoginCPF(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Refresh_RequiresToken(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(context.Context, string, string) (*domain.AuthResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/v1/auth/refresh", `{}`)

	err := NewAuthHandler(stub).Refresh(c)
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if de.Message != "refresh_token is required" {
		t.Fatalf("unexpected message %q", de.Message)
	}
}

func TestAuthHandler_Refresh_Success(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, _ string, token string) (*domain.AuthResult, error) {
			if token != "old.refresh.token" {
				t.Fatalf("unexpected token %q", token)
			}
			return sampleResult(), nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"old.refresh.token"}`)

	if err := NewAuthHandler(stub).Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	called := false
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, _ string, token string) error {
			called = token == "some.refresh.token"
			return nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"some.refresh.token"}`)

	if err := NewAuthHandler(stub).Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("logout not forwarded")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c, rec := newContext(http.MethodGet, "/v1/auth/me", "")
	c.Set(middleware.ClaimsKey, &domain.AccessTokenClaims{
		SubjectID:   "u-emp",
		Email:       "emp@example.com",
		DisplayName: "Emp",
		Role:        domain.RoleEmployee,
		EmployeeRef: "e-1",
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(15 * time.Minute),
	})

	if err := NewAuthHandler(&stubAuthService{}).Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "u-emp" || resp.EmployeeID != "e-1" || resp.Role != domain.RoleEmployee {
		t.Fatalf("unexpected body %+v", resp)
	}
}

func TestAuthHandler_Me_WithoutClaims(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/v1/auth/me", "")

	err := NewAuthHandler(&stubAuthService{}).Me(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

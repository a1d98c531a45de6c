package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates a user by email and password.
//
// @Summary      Login with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  domain.AuthResult
// @Failure      400   {object}  api.errorResponse
// @Failure      401   {object}  api.errorResponse
// @Failure      429   {object}  api.errorResponse
// @Router       /v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) (err error) {
	var req loginRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	defer observe(domain.OpLogin, time.Now(), &err)

	res, err := h.authService.Login(c.Request().Context(), c.RealIP(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// LoginCPF authenticates the user linked to a client CPF.
//
// @Summary      Login with CPF
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      cpfLoginRequest  true  "Client CPF, formatted or digits only"
// @Success      200   {object}  domain.AuthResult
// @Failure      400   {object}  api.errorResponse
// @Failure      404   {object}  api.errorResponse
// @Failure      429   {object}  api.errorResponse
// @Router       /v1/auth/login/cpf [post]
func (h *AuthHandler) LoginCPF(c echo.Context) (err error) {
	var req cpfLoginRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	defer observe(domain.OpLoginCPF, time.Now(), &err)

	res, err := h.authService.LoginByCPF(c.Request().Context(), c.RealIP(), req.CPF)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is consumed and cannot be used again.
//
// @Summary      Rotate refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  domain.AuthResult
// @Failure      400   {object}  api.errorResponse
// @Failure      401   {object}  api.errorResponse
// @Failure      404   {object}  api.errorResponse
// @Router       /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) (err error) {
	var req refreshRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	defer observe(domain.OpRefresh, time.Now(), &err)

	res, err := h.authService.Refresh(c.Request().Context(), c.RealIP(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
//
// @Summary      Logout
// @Tags         auth
// @Accept       json
// @Param        body  body  refreshRequest  true  "Refresh token to revoke"
// @Success      204
// @Failure      400   {object}  api.errorResponse
// @Router       /v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) (err error) {
	var req refreshRequest
	if err = bindAndValidate(c, &req); err != nil {
		return err
	}
	defer observe(domain.OpLogout, time.Now(), &err)

	if err = h.authService.Logout(c.Request().Context(), c.RealIP(), req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the identity carried by the bearer access token.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  api.errorResponse
// @Router       /v1/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{
		ID:         claims.SubjectID,
		Email:      claims.Email,
		Name:       claims.DisplayName,
		Role:       claims.Role,
		ClientID:   claims.ClientRef,
		EmployeeID: claims.EmployeeRef,
		IssuedAt:   claims.IssuedAt,
		ExpiresAt:  claims.ExpiresAt,
	})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return domain.NewValidationError(err.Error())
	}
	return nil
}

// observe records the outcome and latency of op. errp is read after the
// handler returns.
func observe(op domain.AuthOperation, start time.Time, errp *error) {
	outcome := "success"
	if err := *errp; err != nil {
		outcome = string(domain.KindOf(err))
		if errors.Is(err, domain.ErrRateLimited) {
			metrics.RateLimitedTotal.WithLabelValues(string(op)).Inc()
		}
	}
	metrics.RequestsTotal.WithLabelValues(string(op), outcome).Inc()
	metrics.RequestDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
}

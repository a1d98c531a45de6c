package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/middleware"
	"github.com/99minutos/auth-service/internal/core/domain"
)

// ctxClaims extracts the claims injected by the Auth middleware. Their absence
// means the route was mounted without the middleware.
func ctxClaims(c echo.Context) (*domain.AccessTokenClaims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(*domain.AccessTokenClaims)
	if !ok || claims == nil || claims.SubjectID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

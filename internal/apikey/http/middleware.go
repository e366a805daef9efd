package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apperrors "github.com/allisson/apikeys/internal/errors"
	"github.com/allisson/apikeys/internal/httputil"
)

// AuthenticationMiddleware authenticates every request through gate.
//
// Missing and invalid credentials both end the request with the same 401 body; the
// reason is only logged. The client address travels with the request context so a
// successful verification records it as the key's last used address. On success the
// principal is stored in the request context and can be read with GetPrincipal.
//
// Usage:
//
//	router.GET("/v1/auth/whoami", AuthenticationMiddleware(gate, logger), handler.Whoami)
func AuthenticationMiddleware(gate *AuthenticationGate, logger *slog.Logger) gin.HandlerFunc {
	challenge := fmt.Sprintf(`ApiKey header="%s"`, gate.Header())

	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(domain.WithClientIP(c.Request.Context(), c.ClientIP()))

		result := gate.AuthenticateRequest(c.Request)
		if !result.Authenticated() {
			logger.Debug("request rejected by authentication gate",
				slog.String("path", c.FullPath()),
				slog.Any("reason", result.Rejection),
			)
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.UnauthorizedResponse)
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), result.Principal))
		c.Next()
	}
}

// RequirePermissionMiddleware rejects principals lacking permission with 403.
// MUST be used after AuthenticationMiddleware.
func RequirePermissionMiddleware(permission string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Error("permission check without authenticated principal", slog.String("path", c.FullPath()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !principal.HasPermission(permission) {
			logger.Info("authorization failed: missing permission",
				slog.String("key_id", principal.KeyID.String()),
				slog.String("owner_id", principal.OwnerID),
				slog.String("permission", permission),
			)
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

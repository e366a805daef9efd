package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/apikeys/internal/apikey/http/dto"
	"github.com/allisson/apikeys/internal/apikey/usecase"
	apperrors "github.com/allisson/apikeys/internal/errors"
	"github.com/allisson/apikeys/internal/httputil"
)

// AuthHandler serves endpoints about the authenticated caller.
type AuthHandler struct {
	apiKeyUseCase usecase.APIKeyUseCase
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(apiKeyUseCase usecase.APIKeyUseCase, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		apiKeyUseCase: apiKeyUseCase,
		logger:        logger,
	}
}

// WhoamiHandler returns the principal and its key's usage statistics.
// GET /v1/auth/whoami - Requires AuthenticationMiddleware.
func (h *AuthHandler) WhoamiHandler(c *gin.Context) {
	principal, ok := GetPrincipal(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	stats, err := h.apiKeyUseCase.UsageStats(c.Request.Context(), principal.OwnerID, principal.KeyID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWhoamiResponse(principal, stats))
}

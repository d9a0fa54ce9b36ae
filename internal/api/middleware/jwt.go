package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// Authenticator resolves an access token into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*services.Principal, error)
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// WebSocket handshakes, so upgrades may pass the token as ?access_token=.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("access_token")
	}
	return ""
}

func JWTAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		p, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			var ae *utils.AppError
			if errors.As(err, &ae) && ae.Code == utils.CodeUnavailable {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, apiError{
					Code:    utils.CodeUnavailable,
					Message: ae.Message,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid token",
			})
			return
		}

		c.Set("user_id", p.UserID)
		c.Set("session_id", p.SessionID)
		c.Set("role", p.Role)
		c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/pkg/auth"
	apperrors "github.com/medelle/practice-api/pkg/errors"
)

const (
	msgNotAuthenticated = "You are not authenticated"
	msgInvalidToken     = "Invalid token"
)

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the session token and stores the caller's id in
// the gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			handler.Fail(c, apperrors.Unauthorized(msgNotAuthenticated))
			return
		}

		claims, err := m.jwtSvc.ValidateSessionToken(token)
		if err != nil {
			handler.Fail(c, apperrors.InvalidToken(msgInvalidToken, err))
			return
		}

		c.Set(handler.ContextUserID, claims.ID)
		logger := zerolog.Ctx(c.Request.Context()).With().Str("user_id", claims.ID.String()).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// bearerToken returns the credential following the scheme in an
// "Authorization: <scheme> <token>" header
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/handler"
	apperrors "github.com/medelle/practice-api/pkg/errors"
)

// ErrorHandler renders the last error a handler recorded with c.Error.
// Anything that is not an AppError is reported as an internal error and
// its details stay in the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		lastErr := c.Errors.Last().Err
		appErr, ok := apperrors.As(lastErr)
		if !ok {
			appErr = apperrors.Internal(lastErr)
		}
		status := appErr.StatusCode()

		logger := zerolog.Ctx(c.Request.Context())
		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(lastErr).Int("status", status).Msg("Request error")

		if c.Writer.Written() {
			return
		}
		c.JSON(status, handler.ErrorBody(appErr))
	}
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery creates a recovery middleware that recovers from panics
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().
					Str("request_id", GetRequestID(c)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, types.NewErrorResponse(http.StatusInternalServerError, c.Request.URL.Path, types.ErrorDetail{
					ErrorMessage: "Internal server error",
					ErrorCode:    errors.ErrInternalServerError,
					ErrorKind:    string(errors.KindInternal),
					RequestID:    GetRequestID(c),
				}))
			}
		}()

		c.Next()
	}
}

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/types"
	"github.com/gin-gonic/gin"
)

// Timeout bounds the request context. Handlers pass the context on to the
// engine and settlement, which give up when it expires; the handler then
// reports the timeout itself. Zero disables the middleware.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusRequestTimeout, types.NewErrorResponse(http.StatusRequestTimeout, c.Request.URL.Path, types.ErrorDetail{
				ErrorMessage: "Request timeout",
				ErrorKind:    string(errors.KindTransport),
				RequestID:    GetRequestID(c),
			}))
		}
	}
}

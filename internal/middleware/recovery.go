package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 carrying the generic
// internal_error code. A panic from writing to a client that already hung
// up is logged at warn and gets no reply.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			gone := clientGone(r)
			event := log.Error()
			if gone {
				event = log.Warn()
			}
			event = event.
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", RequestIDFrom(c))
			if user, ok := CurrentUser(c); ok {
				event = event.Str("user_id", user.ID)
			}

			if gone {
				event.Msg("client connection lost")
				c.Abort()
				return
			}
			event.Bytes("stack", debug.Stack()).Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}()
		c.Next()
	}
}

func clientGone(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	return errors.Is(err, http.ErrAbortHandler) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"praxihub/backend/pkg/response"
)

// BodyLimit wraps the body in http.MaxBytesReader. Handlers that hit the cap
// while binding or reading a contract upload surface it via c.Error, and the
// response is rewritten to 413 unless one was already sent.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		var tooLarge *http.MaxBytesError
		for _, ge := range c.Errors {
			if errors.As(ge.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "request body too large")
				return
			}
		}
	}
}

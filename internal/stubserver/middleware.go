package stubserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tinytelemetry/fingervote/internal/scanapi"
)

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// csrfCookie hands out a csrftoken cookie to clients that lack one.
func (s *Server) csrfCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.Cookie(scanapi.CSRFCookie); err != nil {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(scanapi.CSRFCookie, uuid.NewString(), 0, "/", "", false, false)
		}
		c.Next()
	}
}

// csrfCheck rejects mutating requests whose header does not echo the cookie.
func (s *Server) csrfCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(scanapi.CSRFCookie)
		if err != nil || cookie == "" || c.GetHeader(scanapi.CSRFHeader) != cookie {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "CSRF verification failed",
			})
			return
		}
		c.Next()
	}
}

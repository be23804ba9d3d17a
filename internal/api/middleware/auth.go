package middleware

import (
	"net/http"
	"strings"

	"github.com/djeeyo/nmreggae/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AdminContextKey marks a request that passed admin authentication
const AdminContextKey = "admin"

// AdminAuth accepts a bearer session token, or the shared password in the
// "password" form field or query parameter. Anything else is rejected with
// 401 before the handler reads the request. A multipart body that cannot be
// read (too large or truncated) is rejected with 400 first, since the
// password inside it is unreadable.
func AdminAuth(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			if _, err := c.MultipartForm(); err != nil {
				message := "Invalid multipart form"
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					message = "Request body too large"
				}
				log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("unreadable admin request body")
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": message,
					"code":  "VALIDATION_ERROR",
				})
				return
			}
		}

		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if _, err := a.ParseSession(token); err == nil {
				c.Set(AdminContextKey, true)
				c.Next()
				return
			}
		}

		password := c.PostForm("password")
		if password == "" {
			password = c.Query("password")
		}
		if !a.CheckPassword(password) {
			log.Warn().Str("path", c.Request.URL.Path).Str("client_ip", c.ClientIP()).Msg("admin authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid password",
			})
			return
		}

		c.Set(AdminContextKey, true)
		c.Next()
	}
}

// BodyLimit caps the request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

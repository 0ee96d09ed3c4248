package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/angelpublicista/tenemos-filo-api/pkg/response"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
)

// ContextKeySession is the gin context key holding the resolved *session.Session
const ContextKeySession = "session"

// SessionResolver resolves a bearer token into a live session
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionConfig holds configuration for the session middleware
type SessionConfig struct {
	Resolver SessionResolver
	// SkipPaths is a list of paths that should skip session resolution
	SkipPaths []string
}

// SessionAuth resolves the bearer session for every request and stores it
// on both the gin context and the request context
func SessionAuth(config *SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, response.Unauthorized(""))
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			response.Abort(c, response.Unauthorized("Formato de autorización inválido"))
			return
		}
		token := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if token == "" {
			response.Abort(c, response.Unauthorized("Token vacío"))
			return
		}

		s, err := config.Resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrTokenExpired), errors.Is(err, session.ErrSessionNotFound):
				response.Abort(c, response.Error(response.ErrCodeSessionExpired, "Tu sesión ha expirado. Inicia sesión de nuevo."))
			case errors.Is(err, session.ErrInvalidToken):
				response.Abort(c, response.Unauthorized("Token inválido"))
			default:
				response.Abort(c, response.ServiceUnavailable(""))
			}
			return
		}

		c.Set(ContextKeySession, s)
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), s))

		c.Next()
	}
}

// RequireRole creates a middleware that checks the session role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := GetSession(c)
		if !ok {
			response.Abort(c, response.Unauthorized(""))
			return
		}

		for _, r := range roles {
			if s.Role == r {
				c.Next()
				return
			}
		}

		response.Abort(c, response.Forbidden(""))
	}
}

// GetSession extracts the resolved session from gin context
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, exists := c.Get(ContextKeySession)
	if !exists {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}

package api

import (
	"log/slog"
	"time"

	"planning-poker/auth"
	"planning-poker/domain"
	"planning-poker/errors"
	"planning-poker/infrastructure/ws"

	"github.com/gin-gonic/gin"
)

const profileKey = "profile"

// AuthMiddleware rejects requests without a valid session token and
// stores the caller's profile in the gin context.
func AuthMiddleware(authenticator ws.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c.Request)
		if token == "" {
			errorResponse(c, errors.ErrUnauthenticated)
			return
		}
		profile, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			errorResponse(c, err)
			return
		}
		c.Set(profileKey, profile)
		c.Next()
	}
}

func currentProfile(c *gin.Context) domain.Profile {
	profile, _ := c.MustGet(profileKey).(domain.Profile)
	return profile
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
		}
		switch {
		case status >= 500:
			log.Error("Request failed", attrs...)
		default:
			log.Debug("Request served", attrs...)
		}
	}
}

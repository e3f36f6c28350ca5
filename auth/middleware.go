package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// LocalDevSubject is the account id injected when auth is disabled.
const LocalDevSubject = "00000000-0000-4000-8000-000000000001"

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	DisableAuth bool
}

// Middleware accepts a bearer token or the session cookie and injects the
// verified claims into the request context.
func Middleware(verifier *Verifier, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.DisableAuth {
			claims := &Claims{Subject: LocalDevSubject}
			ctx := WithClaims(c.Request.Context(), claims)
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		token, ok := tokenFromRequest(c)
		if !ok {
			log.Debug().Str("path", c.Request.URL.Path).Msg("auth failure: no token")
			respondUnauthorized(c, "Unauthorized - no token provided")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Info().Str("path", c.Request.URL.Path).Err(err).Msg("auth failure: token invalid")
			respondUnauthorized(c, "Unauthorized - invalid token")
			return
		}

		ctx := WithClaims(c.Request.Context(), claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// tokenFromRequest prefers the Authorization header and falls back to the
// session cookie. A present but malformed header is rejected.
func tokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		return extractBearerToken(header)
	}
	cookie, err := c.Cookie(CookieName)
	if err != nil || strings.TrimSpace(cookie) == "" {
		return "", false
	}
	return strings.TrimSpace(cookie), true
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: message,
		Code:  models.CodeUnauthorized,
	})
}

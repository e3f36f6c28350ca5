package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName carries the session token for browser clients.
const CookieName = "token"

// SetTokenCookie stores the session token in an HTTP-only cookie.
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie expires the session cookie.
func ClearTokenCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}

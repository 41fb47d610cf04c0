package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookiePath limits the session cookie to the API surface.
const CookiePath = "/api"

// SessionCookie builds the Set-Cookie value carrying a session token.
// Secure is omitted on plain-HTTP dev origins.
func SessionCookie(name, token string, maxAge time.Duration, secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}

// ClearSessionCookie builds an expired cookie instructing the client to
// discard its token. Attached to every token-rejection response so stale
// cookies are proactively dropped.
func ClearSessionCookie(name string, secure bool) *fiber.Cookie {
	cookie := SessionCookie(name, "", 0, secure)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}

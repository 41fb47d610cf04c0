package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

const sessionKey = "auth_session"

// Session is the authenticated caller attached to the request context.
type Session struct {
	Token  string
	Claims *SessionClaims
}

// SessionMiddleware extracts and verifies the session cookie.
type SessionMiddleware struct {
	tokens     *TokenManager
	cookieName string
	secure     bool
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, cookieName string, secure bool) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, cookieName: cookieName, secure: secure}
}

// FromRequest reads and verifies the session cookie. Both failure cases
// attach a clearing cookie so the client discards the stale value.
func (m *SessionMiddleware) FromRequest(c *fiber.Ctx) (*Session, error) {
	raw := c.Cookies(m.cookieName)
	if raw == "" {
		c.Cookie(ClearSessionCookie(m.cookieName, m.secure))
		return nil, apperrors.NewUnauthorized(apperrors.CodeMissingToken)
	}

	claims, err := m.tokens.Verify(raw)
	if err != nil {
		c.Cookie(ClearSessionCookie(m.cookieName, m.secure))
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidToken)
	}

	return &Session{Token: raw, Claims: claims}, nil
}

// Require enforces authentication for protected routes.
func (m *SessionMiddleware) Require(c *fiber.Ctx) error {
	session, err := m.FromRequest(c)
	if err != nil {
		return err
	}
	c.Locals(sessionKey, session)
	return c.Next()
}

// Optional attaches a session when a valid cookie is present; an invalid
// cookie is cleared and the request continues unauthenticated.
func (m *SessionMiddleware) Optional(c *fiber.Ctx) error {
	if session, err := m.FromRequest(c); err == nil {
		c.Locals(sessionKey, session)
	}
	return c.Next()
}

// RequireScope ensures the session carries one of the allowed scopes.
func RequireScope(allowed ...domain.Scope) fiber.Handler {
	allowedSet := make(map[domain.Scope]struct{}, len(allowed))
	for _, scope := range allowed {
		allowedSet[scope] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(apperrors.CodeMissingToken)
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[session.Claims.Scope]; !exists {
			return apperrors.NewForbidden(apperrors.CodeInvalidTokenScope)
		}
		return c.Next()
	}
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*Session)
	return session, ok
}

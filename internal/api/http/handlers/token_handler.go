package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/dto"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// TokenHandler exposes session token introspection and sign-out.
type TokenHandler struct {
	cookieName string
	secure     bool
}

// NewTokenHandler constructs handler.
func NewTokenHandler(cookieName string, secure bool) *TokenHandler {
	return &TokenHandler{cookieName: cookieName, secure: secure}
}

// Introspect handles GET /api/auth/token, returning the raw session token
// and its decoded claims.
func (h *TokenHandler) Introspect(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(apperrors.CodeMissingToken)
	}

	raw, err := json.Marshal(session.Claims)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	decoded := map[string]any{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.TokenIntrospectResponse{
		Success: true,
		Token:   session.Token,
		Decoded: decoded,
	})
}

// Clear handles DELETE /api/auth/token. It always succeeds, with or without
// a valid cookie.
func (h *TokenHandler) Clear(c *fiber.Ctx) error {
	c.Cookie(auth.ClearSessionCookie(h.cookieName, h.secure))
	return c.JSON(dto.SuccessResponse{Success: true})
}

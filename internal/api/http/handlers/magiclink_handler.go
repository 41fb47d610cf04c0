package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/dto"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/service"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

const birthdateLayout = "2006-01-02"

// MagicLinkHandler exposes the magic-link sign-in flow.
type MagicLinkHandler struct {
	magicLink  *service.MagicLinkService
	cookieName string
	secure     bool
}

// NewMagicLinkHandler constructs handler.
func NewMagicLinkHandler(magicLink *service.MagicLinkService, cookieName string, secure bool) *MagicLinkHandler {
	return &MagicLinkHandler{magicLink: magicLink, cookieName: cookieName, secure: secure}
}

// Start handles POST /api/auth/magic-link. The response is identical for
// known and unknown identifiers.
func (h *MagicLinkHandler) Start(c *fiber.Ctx) error {
	var req dto.MagicLinkStartRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.Identifier == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	if err := h.magicLink.Start(c.UserContext(), req.Identifier, req.Followup); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

// Verify handles GET /api/auth/magic-link. A valid token for an existing
// account sets the session cookie and redirects to the followup, a valid
// token for an unknown email redirects to profile completion.
func (h *MagicLinkHandler) Verify(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	result, err := h.magicLink.Verify(c.UserContext(), token, c.Query("followup"))
	if err != nil {
		return err
	}

	if result.Session != nil {
		c.Cookie(auth.SessionCookie(h.cookieName, result.Session.Token, result.Session.MaxAge, h.secure))
	}
	return c.Redirect(result.Redirect, fiber.StatusFound)
}

// Complete handles PUT /api/auth/magic-link, creating the account behind a
// pre-account token.
func (h *MagicLinkHandler) Complete(c *fiber.Ctx) error {
	var req dto.ProfileCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.Token == "" || req.Name == "" || req.Birthdate == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	birthdate, err := time.Parse(birthdateLayout, req.Birthdate)
	if err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	result, err := h.magicLink.CompleteProfile(c.UserContext(), req.Token, req.Name, birthdate, req.Permit)
	if err != nil {
		return err
	}

	c.Cookie(auth.SessionCookie(h.cookieName, result.Token, result.MaxAge, h.secure))
	return c.JSON(dto.SessionResponse{
		Success: true,
		Token:   result.Token,
		Name:    result.User.Name,
	})
}

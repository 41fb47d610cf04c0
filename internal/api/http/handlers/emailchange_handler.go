package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/dto"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/service"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// EmailChangeHandler exposes the address change flow.
type EmailChangeHandler struct {
	emailChange    *service.EmailChangeService
	cookieName     string
	secure         bool
	platformOrigin string
}

// NewEmailChangeHandler constructs handler.
func NewEmailChangeHandler(emailChange *service.EmailChangeService, cookieName string, secure bool, platformOrigin string) *EmailChangeHandler {
	return &EmailChangeHandler{
		emailChange:    emailChange,
		cookieName:     cookieName,
		secure:         secure,
		platformOrigin: platformOrigin,
	}
}

// Request handles POST /api/auth/change-email. Requires a session.
func (h *EmailChangeHandler) Request(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(apperrors.CodeMissingToken)
	}

	var req dto.ChangeEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.Email == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	if err := h.emailChange.Request(c.UserContext(), session.Claims.Subject, req.Email); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

// Confirm handles GET /api/auth/change-email. Applies the address carried
// by the token, refreshes the session cookie and redirects to the account
// page. The revert link lands here as well.
func (h *EmailChangeHandler) Confirm(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	result, err := h.emailChange.Confirm(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Cookie(auth.SessionCookie(h.cookieName, result.Token, result.MaxAge, h.secure))
	return c.Redirect(h.platformOrigin+"/account", fiber.StatusFound)
}

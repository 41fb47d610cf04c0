package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/dto"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/service"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// PasskeyHandler exposes WebAuthn registration and authentication.
type PasskeyHandler struct {
	passkeys   *service.PasskeyService
	cookieName string
	secure     bool
}

// NewPasskeyHandler constructs handler.
func NewPasskeyHandler(passkeys *service.PasskeyService, cookieName string, secure bool) *PasskeyHandler {
	return &PasskeyHandler{passkeys: passkeys, cookieName: cookieName, secure: secure}
}

// Challenge handles GET /api/auth/passkey/challenge. With a session the
// challenge is bound to the caller and usable for registration, or, when
// the user query hint is present, for an allow-list login. Without a
// session it is an unbound login challenge.
func (h *PasskeyHandler) Challenge(c *fiber.Ctx) error {
	var subjectID string
	if session, ok := auth.SessionFromContext(c); ok {
		subjectID = session.Claims.Subject
	}

	challenge, err := h.passkeys.StartChallenge(c.UserContext(), subjectID, c.Query("user"))
	if err != nil {
		return err
	}

	return c.JSON(dto.PasskeyChallengeResponse{
		Success:   true,
		ID:        challenge.ID,
		Challenge: challenge.Value,
	})
}

// Register handles POST /api/auth/passkey/register.
func (h *PasskeyHandler) Register(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(apperrors.CodeMissingToken)
	}

	var req dto.PasskeyRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.ChallengeID == "" || len(req.Registration) == 0 {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	credential, err := h.passkeys.FinishRegistration(c.UserContext(), session.Claims.Subject, req.ChallengeID, req.Name, req.Registration)
	if err != nil {
		return err
	}

	return c.JSON(dto.PasskeyRegisterResponse{
		Success: true,
		ID:      credential.ID,
		Name:    credential.Name,
	})
}

// Authenticate handles POST /api/auth/passkey/authenticate and sets the
// session cookie on success.
func (h *PasskeyHandler) Authenticate(c *fiber.Ctx) error {
	var req dto.PasskeyAuthenticateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.ChallengeID == "" || len(req.Assertion) == 0 {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	result, err := h.passkeys.FinishAuthentication(c.UserContext(), req.ChallengeID, req.Assertion)
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

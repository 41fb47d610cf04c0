package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/dto"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/service"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// BirthdateHandler exposes the parental permit flow. Callers identify
// themselves either by session cookie or by pre-account token.
type BirthdateHandler struct {
	birthdate *service.BirthdateService
	tokens    *auth.TokenManager
}

// NewBirthdateHandler constructs handler.
func NewBirthdateHandler(birthdate *service.BirthdateService, tokens *auth.TokenManager) *BirthdateHandler {
	return &BirthdateHandler{birthdate: birthdate, tokens: tokens}
}

// RequestPermit handles POST /api/birthdate/permit.
func (h *BirthdateHandler) RequestPermit(c *fiber.Ctx) error {
	var req dto.BirthdatePermitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.Birthdate == "" || req.ParentEmail == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	birthdate, err := time.Parse(birthdateLayout, req.Birthdate)
	if err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	subject, err := h.resolveSubject(c, req.Token)
	if err != nil {
		return err
	}

	if err := h.birthdate.RequestPermit(c.UserContext(), subject, birthdate, req.ParentEmail); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

// ValidatePermit handles POST /api/birthdate/permit/validate. The check is
// non-consuming; the permit stays redeemable for the profile write that
// follows.
func (h *BirthdateHandler) ValidatePermit(c *fiber.Ctx) error {
	var req dto.BirthdatePermitValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	if req.Birthdate == "" {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}
	birthdate, err := time.Parse(birthdateLayout, req.Birthdate)
	if err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	subject, err := h.resolveSubject(c, req.Token)
	if err != nil {
		return err
	}

	if _, err := h.birthdate.CheckPermit(c.UserContext(), subject.Key(), birthdate, req.Permit); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

func (h *BirthdateHandler) resolveSubject(c *fiber.Ctx, preAccountToken string) (service.Subject, error) {
	session, _ := auth.SessionFromContext(c)
	return service.ResolveSubject(session, preAccountToken, h.tokens)
}

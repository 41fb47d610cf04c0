package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/repository"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// EmailChangeService handles the two-token address change flow: a
// confirmation token mailed to the new address and a longer-lived revert
// token mailed to the old one.
type EmailChangeService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger

	platformOrigin string
	confirmTTL     time.Duration
	revertTTL      time.Duration
	now            func() time.Time
}

// EmailChangeDependencies bundles requirements for the service.
type EmailChangeDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewEmailChangeService builds the service.
func NewEmailChangeService(cfg config.Config, deps EmailChangeDependencies) *EmailChangeService {
	return &EmailChangeService{
		users:          deps.UserRepo,
		tokens:         deps.Tokens,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		platformOrigin: cfg.App.PlatformOrigin,
		confirmTTL:     cfg.Auth.VerifyTokenTTL,
		revertTTL:      cfg.Auth.RevertTokenTTL,
		now:            time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *EmailChangeService) WithClock(now func() time.Time) *EmailChangeService {
	s.now = now
	return s
}

// Request issues the confirmation and revert tokens for an address change.
// Both carry the account id as subject and the target address as a claim,
// so neither can be replayed against a different account or address.
func (s *EmailChangeService) Request(ctx context.Context, accountID string, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" || !domain.EmailShaped(newEmail) {
		return apperrors.NewBadRequest(apperrors.CodeInvalidBody)
	}

	user, err := s.users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound(apperrors.CodeUnknownUser)
		}
		return apperrors.NewInternalError(err)
	}

	confirm, err := s.tokens.IssueVerification(accountID, domain.ScopeUser, auth.AudienceChangeEmail, newEmail, s.confirmTTL)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	revert, err := s.tokens.IssueVerification(accountID, domain.ScopeUser, auth.AudienceChangeEmail, user.Email, s.revertTTL)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventEmailChangeRequested,
		Subject:   accountID,
		Timestamp: s.now(),
		Payload: events.EmailChangeRequestedPayload{
			OldEmail:    user.Email,
			NewEmail:    newEmail,
			ConfirmLink: s.platformOrigin + "/account/change-email?token=" + confirm,
			RevertLink:  s.platformOrigin + "/account/change-email?token=" + revert,
		},
	})

	s.logger.Info("email change requested", zap.String("user", accountID))
	return nil
}

// Confirm applies the address carried by a change-email token and issues a
// fresh session for the account. Reverting is the same operation with the
// revert token.
func (s *EmailChangeService) Confirm(ctx context.Context, token string) (*SessionResult, error) {
	claims, err := s.tokens.VerifyVerification(token, auth.AudienceChangeEmail)
	if err != nil {
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials)
	}
	if domain.EmailShaped(claims.Subject) {
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidTokenSubject)
	}
	if claims.Email == "" {
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(apperrors.CodeUnknownUser)
		}
		return nil, apperrors.NewInternalError(err)
	}

	user.Email = claims.Email
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	sessionToken, maxAge, err := s.tokens.Issue(user.ID, claims.Scope)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSessionIssued,
		Subject:   user.ID,
		Timestamp: s.now(),
		Payload: events.SessionIssuedPayload{
			Scope:  claims.Scope,
			Method: "email-change",
		},
	})

	s.logger.Info("email change applied", zap.String("user", user.ID))
	return &SessionResult{Token: sessionToken, MaxAge: maxAge, User: user}, nil
}

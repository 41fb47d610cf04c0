package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
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

// MagicLinkService drives passwordless email sign-in: an emailed
// verification token substitutes for a password, and verifying it either
// mints a session or routes the caller to profile completion.
type MagicLinkService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	birthdate  *BirthdateService
	dispatcher events.Dispatcher
	logger     *zap.Logger

	platformOrigin string
	verifyTTL      time.Duration
	now            func() time.Time
}

// MagicLinkDependencies bundles requirements for the service.
type MagicLinkDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Birthdate  *BirthdateService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewMagicLinkService builds the service.
func NewMagicLinkService(cfg config.Config, deps MagicLinkDependencies) *MagicLinkService {
	return &MagicLinkService{
		users:          deps.UserRepo,
		tokens:         deps.Tokens,
		birthdate:      deps.Birthdate,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		platformOrigin: cfg.App.PlatformOrigin,
		verifyTTL:      cfg.Auth.VerifyTokenTTL,
		now:            time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *MagicLinkService) WithClock(now func() time.Time) *MagicLinkService {
	s.now = now
	return s
}

// SessionResult is a freshly minted session.
type SessionResult struct {
	Token  string
	MaxAge time.Duration
	User   *domain.User
}

// VerifyResult tells the transport where to send the caller after a link
// click. Session is nil when the subject still needs profile completion.
type VerifyResult struct {
	Session  *SessionResult
	Redirect string
}

// Start issues a magic link for the identifier. The response never reveals
// whether an account exists: the token subject is the account id when one
// does and the raw email otherwise, and both paths answer identically.
func (s *MagicLinkService) Start(ctx context.Context, identifier, followup string) error {
	email := strings.ToLower(strings.TrimSpace(identifier))

	subject := email
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		subject = user.ID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		// Lookup trouble must not leak either; log and fall back to the
		// email-shaped subject so the response stays uniform.
		s.logger.Warn("magic-link account lookup failed", zap.Error(err))
	}

	token, err := s.tokens.IssueVerification(subject, domain.ScopeUser, auth.AudienceVerifyEmail, "", s.verifyTTL)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	link := fmt.Sprintf("%s/api/auth/magic-link?token=%s", s.platformOrigin, url.QueryEscape(token))
	if followup := sanitizeFollowup(followup); followup != "" {
		link += "&followup=" + url.QueryEscape(followup)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventMagicLinkRequested,
		Subject:   subject,
		Timestamp: s.now(),
		Payload: events.MagicLinkRequestedPayload{
			Email: email,
			Link:  link,
		},
	})

	s.logger.Info("magic link issued")
	return nil
}

// Verify redeems a clicked link. An email-shaped subject means no account
// existed at send time and the caller is redirected to profile completion
// still carrying the token; an id-shaped subject gets a session.
func (s *MagicLinkService) Verify(ctx context.Context, token, followup string) (*VerifyResult, error) {
	claims, err := s.tokens.VerifyVerification(token, auth.AudienceVerifyEmail)
	if err != nil {
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials)
	}

	if domain.EmailShaped(claims.Subject) {
		redirect := fmt.Sprintf("%s/account/create-profile?token=%s", s.platformOrigin, url.QueryEscape(token))
		if followup := sanitizeFollowup(followup); followup != "" {
			redirect += "&followup=" + url.QueryEscape(followup)
		}
		return &VerifyResult{Redirect: redirect}, nil
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(apperrors.CodeUnknownUser)
		}
		return nil, apperrors.NewInternalError(err)
	}

	session, err := s.issueSession(ctx, user, "magic-link")
	if err != nil {
		return nil, err
	}

	redirect := s.platformOrigin + "/account"
	if followup := sanitizeFollowup(followup); followup != "" {
		redirect = s.platformOrigin + followup
	}
	return &VerifyResult{Session: session, Redirect: redirect}, nil
}

// CompleteProfile turns a pre-account magic-link token into an account.
// The token must still be valid, carry an email-shaped subject and the
// user scope; minors additionally need a validated birthdate permit.
func (s *MagicLinkService) CompleteProfile(ctx context.Context, token, name string, birthdate time.Time, permitCode string) (*SessionResult, error) {
	claims, err := s.tokens.VerifyVerification(token, auth.AudienceVerifyEmail)
	if err != nil {
		return nil, apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials)
	}
	if !domain.EmailShaped(claims.Subject) {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidTokenSubject)
	}
	if claims.Scope != domain.ScopeUser {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidTokenScope)
	}

	email := claims.Subject
	extra := map[string]any{}

	permit, err := s.birthdate.ValidatePermit(ctx, email, birthdate, permitCode)
	if err != nil {
		return nil, err
	}
	if permit != nil {
		extra[domain.ExtraKeyParentEmail] = permit.ParentEmail
	}

	user := &domain.User{
		Name:      name,
		Email:     email,
		Birthdate: &birthdate,
		Extra:     extra,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeUserCreationFailed)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventUserCreated,
		Subject:   user.ID,
		Timestamp: s.now(),
		Payload: events.UserCreatedPayload{
			Email: user.Email,
			Name:  user.Name,
		},
	})

	return s.issueSession(ctx, user, "magic-link")
}

func (s *MagicLinkService) issueSession(ctx context.Context, user *domain.User, method string) (*SessionResult, error) {
	token, maxAge, err := s.tokens.Issue(user.ID, domain.ScopeUser)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSessionIssued,
		Subject:   user.ID,
		Timestamp: s.now(),
		Payload: events.SessionIssuedPayload{
			Scope:  domain.ScopeUser,
			Method: method,
		},
	})

	return &SessionResult{Token: token, MaxAge: maxAge, User: user}, nil
}

// sanitizeFollowup keeps redirects on-platform: only rooted paths survive.
func sanitizeFollowup(followup string) string {
	if !strings.HasPrefix(followup, "/") || strings.HasPrefix(followup, "//") {
		return ""
	}
	return followup
}

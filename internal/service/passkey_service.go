package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
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

// PasskeyService drives WebAuthn credential registration and
// assertion-based authentication.
type PasskeyService struct {
	webAuthn    *webauthn.WebAuthn
	users       repository.UserRepository
	credentials repository.CredentialRepository
	challenges  repository.ChallengeStore
	tokens      *auth.TokenManager
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	challengeTTL time.Duration
	now          func() time.Time
}

// PasskeyDependencies bundles requirements for the service.
type PasskeyDependencies struct {
	UserRepo       repository.UserRepository
	CredentialRepo repository.CredentialRepository
	ChallengeStore repository.ChallengeStore
	Tokens         *auth.TokenManager
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewPasskeyService builds the service.
func NewPasskeyService(cfg config.Config, deps PasskeyDependencies) (*PasskeyService, error) {
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPID:          cfg.WebAuthn.RPID,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		return nil, err
	}

	return &PasskeyService{
		webAuthn:     webAuthn,
		users:        deps.UserRepo,
		credentials:  deps.CredentialRepo,
		challenges:   deps.ChallengeStore,
		tokens:       deps.Tokens,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		challengeTTL: cfg.Auth.ChallengeTTLPasskey,
		now:          time.Now,
	}, nil
}

// WithClock overrides the service clock. Used by tests.
func (s *PasskeyService) WithClock(now func() time.Time) *PasskeyService {
	s.now = now
	return s
}

// StartChallenge issues a passkey challenge. With an authenticated subject
// the challenge is bound to it and redeemable for registration only, unless
// the user hint marks login intent, which yields a login challenge with an
// allow-list of the subject's own credentials. An unauthenticated call
// yields an unbound login challenge; the hint is not trusted without a
// session.
func (s *PasskeyService) StartChallenge(ctx context.Context, subjectID, userHint string) (*domain.Challenge, error) {
	switch {
	case subjectID != "" && userHint != "":
		return s.startBoundAuthentication(ctx, subjectID)
	case subjectID != "":
		return s.startRegistration(ctx, subjectID)
	default:
		return s.startAuthentication(ctx)
	}
}

func (s *PasskeyService) startRegistration(ctx context.Context, userID string) (*domain.Challenge, error) {
	wu, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(wu.credentials))
	for _, credential := range wu.credentials {
		exclusions = append(exclusions, credential.Descriptor())
	}

	_, sessionData, err := s.webAuthn.BeginRegistration(wu, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return s.storeChallenge(ctx, domain.MethodPasskeyRegister, userID, sessionData)
}

func (s *PasskeyService) startAuthentication(ctx context.Context) (*domain.Challenge, error) {
	_, sessionData, err := s.webAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return s.storeChallenge(ctx, domain.MethodPasskeyAuthenticate, "", sessionData)
}

func (s *PasskeyService) startBoundAuthentication(ctx context.Context, userID string) (*domain.Challenge, error) {
	wu, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// BeginLogin fails for a user without registered credentials.
	_, sessionData, err := s.webAuthn.BeginLogin(wu)
	if err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidCredential)
	}

	return s.storeChallenge(ctx, domain.MethodPasskeyAuthenticate, userID, sessionData)
}

// FinishRegistration verifies an authenticator registration payload against
// the subject-bound challenge and persists the resulting credential.
func (s *PasskeyService) FinishRegistration(ctx context.Context, subjectID, challengeID, name string, payload []byte) (*domain.Credential, error) {
	challenge, sessionData, err := s.consumeChallenge(ctx, domain.MethodPasskeyRegister, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.Subject == "" || challenge.Subject != subjectID {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidChallenge)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidCredential)
	}

	wu, err := s.loadWebAuthnUser(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	credential, err := s.webAuthn.CreateCredential(wu, *sessionData, parsed)
	if err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidCredential)
	}

	if name == "" {
		name = "Passkey"
	}
	record := &domain.Credential{
		ID:              base64.RawURLEncoding.EncodeToString(credential.ID),
		UserID:          subjectID,
		Name:            name,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		SignCount:       credential.Authenticator.SignCount,
	}
	if err := s.credentials.Create(ctx, record); err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeCredentialNotStored)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPasskeyRegistered,
		Subject:   subjectID,
		Timestamp: s.now(),
		Payload: events.PasskeyRegisteredPayload{
			CredentialID: record.ID,
			Name:         record.Name,
		},
	})

	s.logger.Info("passkey registered", zap.String("credential", record.ID))
	return record, nil
}

// FinishAuthentication verifies a signed assertion against the challenge
// and the stored public key, then mints a session for the credential's
// owner. A subject-bound challenge only accepts that subject's credentials.
// Sign counters are enforced: a counter regression fails the login.
func (s *PasskeyService) FinishAuthentication(ctx context.Context, challengeID string, payload []byte) (*SessionResult, error) {
	challenge, sessionData, err := s.consumeChallenge(ctx, domain.MethodPasskeyAuthenticate, challengeID)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeAuthenticationFailed)
	}

	credentialID := base64.RawURLEncoding.EncodeToString(parsed.RawID)
	stored, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewBadRequest(apperrors.CodeInvalidCredential)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if challenge.Subject != "" && stored.UserID != challenge.Subject {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidCredential)
	}

	owner, err := s.loadWebAuthnUser(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	var verified *webauthn.Credential
	if challenge.Subject != "" {
		verified, err = s.webAuthn.ValidateLogin(owner, *sessionData, parsed)
	} else {
		handler := func(rawID, userHandle []byte) (webauthn.User, error) {
			return owner, nil
		}
		verified, err = s.webAuthn.ValidateDiscoverableLogin(handler, *sessionData, parsed)
	}
	if err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeAuthenticationFailed)
	}
	if verified.Authenticator.CloneWarning {
		return nil, apperrors.NewBadRequest(apperrors.CodeAuthenticationFailed)
	}

	if err := s.credentials.UpdateSignCount(ctx, credentialID, verified.Authenticator.SignCount); err != nil {
		s.logger.Warn("failed to update sign count", zap.Error(err))
	}

	token, maxAge, err := s.tokens.Issue(owner.user.ID, domain.ScopeUser)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSessionIssued,
		Subject:   owner.user.ID,
		Timestamp: s.now(),
		Payload: events.SessionIssuedPayload{
			Scope:  domain.ScopeUser,
			Method: "passkey",
		},
	})

	return &SessionResult{Token: token, MaxAge: maxAge, User: owner.user}, nil
}

func (s *PasskeyService) storeChallenge(ctx context.Context, method domain.ChallengeMethod, subjectID string, sessionData *webauthn.SessionData) (*domain.Challenge, error) {
	session, err := json.Marshal(sessionData)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	challenge := &domain.Challenge{
		ID:        uuid.NewString(),
		Method:    method,
		Value:     sessionData.Challenge,
		Subject:   subjectID,
		Session:   session,
		CreatedAt: s.now(),
	}
	if err := s.challenges.Create(ctx, challenge, s.challengeTTL); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return challenge, nil
}

func (s *PasskeyService) consumeChallenge(ctx context.Context, method domain.ChallengeMethod, id string) (*domain.Challenge, *webauthn.SessionData, error) {
	challenge, err := s.challenges.Consume(ctx, method, id)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	if challenge == nil || s.now().Sub(challenge.CreatedAt) > s.challengeTTL {
		return nil, nil, apperrors.NewBadRequest(apperrors.CodeInvalidChallenge)
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal(challenge.Session, &sessionData); err != nil {
		return nil, nil, apperrors.NewBadRequest(apperrors.CodeInvalidChallenge)
	}
	return challenge, &sessionData, nil
}

func (s *PasskeyService) loadWebAuthnUser(ctx context.Context, userID string) (*webauthnUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(apperrors.CodeUnknownUser)
		}
		return nil, apperrors.NewInternalError(err)
	}

	records, err := s.credentials.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		id, err := base64.RawURLEncoding.DecodeString(record.ID)
		if err != nil {
			continue
		}
		credentials = append(credentials, webauthn.Credential{
			ID:              id,
			PublicKey:       record.PublicKey,
			AttestationType: record.AttestationType,
			Authenticator: webauthn.Authenticator{
				SignCount: record.SignCount,
			},
		})
	}

	return &webauthnUser{user: user, credentials: credentials}, nil
}

// webauthnUser adapts a domain user to the webauthn library's User.
type webauthnUser struct {
	user        *domain.User
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *webauthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	return u.user.Name
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (u *webauthnUser) WebAuthnIcon() string {
	return ""
}

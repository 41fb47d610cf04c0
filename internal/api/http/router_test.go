package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/api/http/handlers"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/observability"
	"github.com/theopensource-company/playrbase-auth/internal/repository"
	"github.com/theopensource-company/playrbase-auth/internal/service"
)

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return pgx.ErrTooManyRows
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(r.byEmail, existing.Email)
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

type testApp struct {
	app        *fiber.App
	users      *memoryUsers
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	cfg        config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{
			Name:           "playrbase-auth",
			Env:            "test",
			PlatformOrigin: "http://localhost:3000",
		},
		Auth: config.AuthConfig{
			SigningSecret: "test-secret",
			Issuer:        "playrbase",
			CookieName:    "playrbase-token",
			SessionTTL: map[string]time.Duration{
				"user": time.Hour,
			},
			DefaultSessionTTL:   time.Hour,
			VerifyTokenTTL:      30 * time.Minute,
			RevertTokenTTL:      48 * time.Hour,
			ChallengeTTLPasskey: 5 * time.Minute,
			PermitTTL:           30 * time.Minute,
		},
		WebAuthn: config.WebAuthnConfig{
			RPDisplayName: "PlayrBase",
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:3000"},
		},
	}

	logger := zap.NewNop()
	users := newMemoryUsers()
	dispatcher := events.NewInMemoryDispatcher()
	tokens := auth.NewTokenManager(cfg.Auth)
	sessionMiddleware := auth.NewSessionMiddleware(tokens, cfg.Auth.CookieName, false)

	birthdateService := service.NewBirthdateService(cfg, service.BirthdateDependencies{
		PermitStore: repository.NewMemoryPermitStore(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	magicLinkService := service.NewMagicLinkService(cfg, service.MagicLinkDependencies{
		UserRepo:   users,
		Tokens:     tokens,
		Birthdate:  birthdateService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	emailChangeService := service.NewEmailChangeService(cfg, service.EmailChangeDependencies{
		UserRepo:   users,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	passkeyService, err := service.NewPasskeyService(cfg, service.PasskeyDependencies{
		UserRepo:       users,
		CredentialRepo: nil,
		ChallengeStore: repository.NewMemoryChallengeStore(),
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, "test", nil, nil),
		MagicLink:   handlers.NewMagicLinkHandler(magicLinkService, cfg.Auth.CookieName, false),
		Token:       handlers.NewTokenHandler(cfg.Auth.CookieName, false),
		Passkey:     handlers.NewPasskeyHandler(passkeyService, cfg.Auth.CookieName, false),
		Birthdate:   handlers.NewBirthdateHandler(birthdateService, tokens),
		EmailChange: handlers.NewEmailChangeHandler(emailChangeService, cfg.Auth.CookieName, false, cfg.App.PlatformOrigin),
		Session:     sessionMiddleware,
	})

	return &testApp{app: app, users: users, tokens: tokens, dispatcher: dispatcher, cfg: cfg}
}

func (ta *testApp) request(t *testing.T, method, path, body string, mutate func(*http.Request)) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	if mutate != nil {
		mutate(req)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestMagicLinkStartAlwaysSucceeds(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/api/auth/magic-link", `{"identifier":"nobody@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
}

func TestMagicLinkStartRejectsMalformedBody(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/api/auth/magic-link", `{notjson`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid_body", body["error"])
}

func TestMagicLinkVerifyRedirectsAndSetsCookie(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, ta.users.Create(ctx, user))

	token, err := ta.tokens.IssueVerification(user.ID, domain.ScopeUser, auth.AudienceVerifyEmail, "", time.Hour)
	require.NoError(t, err)

	resp := ta.request(t, http.MethodGet, "/api/auth/magic-link?token="+token, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000/account", resp.Header.Get("Location"))

	cookie := resp.Header.Get("Set-Cookie")
	assert.Contains(t, cookie, ta.cfg.Auth.CookieName+"=")
	assert.Contains(t, cookie, "Path=/api")
	assert.Contains(t, cookie, "HttpOnly")
}

func TestTokenIntrospection(t *testing.T) {
	ta := newTestApp(t)

	sessionToken, _, err := ta.tokens.Issue("user-1", domain.ScopeUser)
	require.NoError(t, err)

	resp := ta.request(t, http.MethodGet, "/api/auth/token", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: ta.cfg.Auth.CookieName, Value: sessionToken})
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, sessionToken, body["token"])
	decoded, ok := body["decoded"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-1", decoded["sub"])
	assert.Equal(t, "user", decoded["sc"])
}

func TestTokenIntrospectionWithoutCookie(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodGet, "/api/auth/token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "missing_token", body["error"])
}

func TestInvalidSessionCookieIsCleared(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodGet, "/api/auth/token", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: ta.cfg.Auth.CookieName, Value: "garbage"})
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "invalid_token", body["error"])

	// rejection clears the stale cookie
	cookie := resp.Header.Get("Set-Cookie")
	assert.Contains(t, cookie, ta.cfg.Auth.CookieName+"=")
	assert.Contains(t, cookie, "expires=")
}

func TestTokenClear(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodDelete, "/api/auth/token", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, resp.Header.Get("Set-Cookie"), ta.cfg.Auth.CookieName+"=")
}

func TestPasskeyChallengeWithoutSession(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodGet, "/api/auth/passkey/challenge", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["challenge"])
}

func TestPasskeyRegisterRequiresSession(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/api/auth/passkey/register", `{"challengeId":"x","registration":{}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "missing_token", body["error"])
}

func TestBirthdatePermitRequiresIdentity(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/api/birthdate/permit", `{"birthdate":"2010-03-14","parent_email":"parent@example.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "missing_token", body["error"])
}

func TestBirthdatePermitWithPreAccountToken(t *testing.T) {
	ta := newTestApp(t)

	token, err := ta.tokens.IssueVerification("kid@example.com", domain.ScopeUser, auth.AudienceVerifyEmail, "", time.Hour)
	require.NoError(t, err)

	resp := ta.request(t, http.MethodPost, "/api/birthdate/permit",
		`{"token":"`+token+`","birthdate":"2012-03-14","parent_email":"parent@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
}

func TestBirthdatePermitValidateThenCompleteProfile(t *testing.T) {
	ta := newTestApp(t)

	var code string
	ta.dispatcher.Subscribe(events.EventPermitRequested, func(_ context.Context, event events.Event) error {
		code = event.Payload.(events.PermitRequestedPayload).Code
		return nil
	})

	token, err := ta.tokens.IssueVerification("kid@example.com", domain.ScopeUser, auth.AudienceVerifyEmail, "", time.Hour)
	require.NoError(t, err)

	resp := ta.request(t, http.MethodPost, "/api/birthdate/permit",
		`{"token":"`+token+`","birthdate":"2012-03-14","parent_email":"parent@example.com"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, code)

	// pre-validation must leave the permit redeemable
	resp = ta.request(t, http.MethodPost, "/api/birthdate/permit/validate",
		`{"token":"`+token+`","birthdate":"2012-03-14","permit":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ta.request(t, http.MethodPut, "/api/auth/magic-link",
		`{"token":"`+token+`","name":"Kid","birthdate":"2012-03-14","permit":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
}

func TestChangeEmailRequiresSession(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/api/auth/change-email", `{"email":"new@example.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthLive(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "alive", body["status"])
}

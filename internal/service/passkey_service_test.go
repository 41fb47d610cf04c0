package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	"github.com/theopensource-company/playrbase-auth/internal/repository"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// fakeCredentialRepo is an in-memory CredentialRepository.
type fakeCredentialRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{byID: map[string]*domain.Credential{}}
}

func (r *fakeCredentialRepo) Create(_ context.Context, credential *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[credential.ID]; exists {
		return pgx.ErrTooManyRows
	}
	clone := *credential
	r.byID[credential.ID] = &clone
	return nil
}

func (r *fakeCredentialRepo) GetByID(_ context.Context, id string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	credential, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *credential
	return &clone, nil
}

func (r *fakeCredentialRepo) ListByUser(_ context.Context, userID string) ([]*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Credential
	for _, credential := range r.byID {
		if credential.UserID == userID {
			clone := *credential
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeCredentialRepo) UpdateSignCount(_ context.Context, id string, signCount uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	credential, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	credential.SignCount = signCount
	return nil
}

type passkeyFixture struct {
	svc         *PasskeyService
	users       *fakeUserRepo
	credentials *fakeCredentialRepo
	challenges  repository.ChallengeStore
}

func newPasskeyFixture(t *testing.T) *passkeyFixture {
	t.Helper()
	cfg := testConfig()
	users := newFakeUserRepo()
	credentials := newFakeCredentialRepo()
	challenges := repository.NewMemoryChallengeStore()

	svc, err := NewPasskeyService(cfg, PasskeyDependencies{
		UserRepo:       users,
		CredentialRepo: credentials,
		ChallengeStore: challenges,
		Tokens:         auth.NewTokenManager(cfg.Auth),
		Dispatcher:     newRecordingDispatcher(),
		Logger:         testLogger(),
	})
	require.NoError(t, err)

	return &passkeyFixture{svc: svc, users: users, credentials: credentials, challenges: challenges}
}

func TestStartChallengeBoundToSession(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	challenge, err := fixture.svc.StartChallenge(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPasskeyRegister, challenge.Method)
	assert.Equal(t, user.ID, challenge.Subject)
	assert.NotEmpty(t, challenge.Value)

	var sessionData webauthn.SessionData
	require.NoError(t, json.Unmarshal(challenge.Session, &sessionData))
	assert.Equal(t, challenge.Value, sessionData.Challenge)
}

func TestStartChallengeUnboundWithoutSession(t *testing.T) {
	fixture := newPasskeyFixture(t)

	challenge, err := fixture.svc.StartChallenge(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPasskeyAuthenticate, challenge.Method)
	assert.Empty(t, challenge.Subject)
}

func TestStartChallengeHintYieldsAllowListLogin(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))
	require.NoError(t, fixture.credentials.Create(ctx, &domain.Credential{
		ID:        "Y3JlZC0x",
		UserID:    user.ID,
		Name:      "Laptop",
		PublicKey: []byte{0x01},
	}))

	challenge, err := fixture.svc.StartChallenge(ctx, user.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPasskeyAuthenticate, challenge.Method)
	assert.Equal(t, user.ID, challenge.Subject)

	var sessionData webauthn.SessionData
	require.NoError(t, json.Unmarshal(challenge.Session, &sessionData))
	assert.Len(t, sessionData.AllowedCredentialIDs, 1)
}

func TestStartChallengeHintWithoutCredentials(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	_, err := fixture.svc.StartChallenge(ctx, user.ID, user.ID)
	requireCode(t, err, apperrors.CodeInvalidCredential)
}

func TestStartChallengeUnknownUser(t *testing.T) {
	fixture := newPasskeyFixture(t)

	_, err := fixture.svc.StartChallenge(context.Background(), "missing-id", "")
	requireCode(t, err, apperrors.CodeUnknownUser)
}

func TestFinishRegistrationRejectsUnknownChallenge(t *testing.T) {
	fixture := newPasskeyFixture(t)

	_, err := fixture.svc.FinishRegistration(context.Background(), "user-1", "nope", "Laptop", []byte(`{}`))
	requireCode(t, err, apperrors.CodeInvalidChallenge)
}

func TestFinishRegistrationRejectsForeignSubject(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	challenge, err := fixture.svc.StartChallenge(ctx, user.ID, "")
	require.NoError(t, err)

	// a challenge bound to one account is unusable for another
	_, err = fixture.svc.FinishRegistration(ctx, "someone-else", challenge.ID, "Laptop", []byte(`{}`))
	requireCode(t, err, apperrors.CodeInvalidChallenge)
}

func TestFinishRegistrationRejectsLoginChallenge(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	challenge, err := fixture.svc.StartChallenge(ctx, "", "")
	require.NoError(t, err)

	_, err = fixture.svc.FinishRegistration(ctx, user.ID, challenge.ID, "Laptop", []byte(`{}`))
	requireCode(t, err, apperrors.CodeInvalidChallenge)
}

func TestFinishRegistrationRejectsMalformedPayload(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	challenge, err := fixture.svc.StartChallenge(ctx, user.ID, "")
	require.NoError(t, err)

	_, err = fixture.svc.FinishRegistration(ctx, user.ID, challenge.ID, "Laptop", []byte(`not json`))
	requireCode(t, err, apperrors.CodeInvalidCredential)
}

func TestFinishAuthenticationRejectsBoundChallenge(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, fixture.users.Create(ctx, user))

	challenge, err := fixture.svc.StartChallenge(ctx, user.ID, "")
	require.NoError(t, err)

	// a registration challenge must not authenticate anybody
	_, err = fixture.svc.FinishAuthentication(ctx, challenge.ID, []byte(`{}`))
	requireCode(t, err, apperrors.CodeInvalidChallenge)
}

func TestFinishAuthenticationRejectsMalformedAssertion(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	challenge, err := fixture.svc.StartChallenge(ctx, "", "")
	require.NoError(t, err)

	_, err = fixture.svc.FinishAuthentication(ctx, challenge.ID, []byte(`not json`))
	requireCode(t, err, apperrors.CodeAuthenticationFailed)
}

func TestChallengeIsSingleUse(t *testing.T) {
	fixture := newPasskeyFixture(t)
	ctx := context.Background()

	challenge, err := fixture.svc.StartChallenge(ctx, "", "")
	require.NoError(t, err)

	_, err = fixture.svc.FinishAuthentication(ctx, challenge.ID, []byte(`not json`))
	requireCode(t, err, apperrors.CodeAuthenticationFailed)

	// the failed attempt consumed the challenge
	_, err = fixture.svc.FinishAuthentication(ctx, challenge.ID, []byte(`not json`))
	requireCode(t, err, apperrors.CodeInvalidChallenge)
}

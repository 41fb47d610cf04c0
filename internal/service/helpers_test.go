package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

func testConfig() config.Config {
	return config.Config{
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
				"user":   time.Hour,
				"admin":  time.Hour,
				"apikey": 30 * 24 * time.Hour,
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
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[string]*domain.User{},
		byEmail: map[string]*domain.User{},
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return pgx.ErrTooManyRows
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(r.byEmail, existing.Email)
	clone := *user
	clone.UpdatedAt = time.Now()
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{}
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) last(t *testing.T, eventType events.EventType) events.Event {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Type == eventType {
			return d.events[i]
		}
	}
	t.Fatalf("no %s event recorded", eventType)
	return events.Event{}
}

func (d *recordingDispatcher) count(eventType events.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, event := range d.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.ToDomainError(err).Code)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

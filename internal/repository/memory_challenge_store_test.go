package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

func TestChallengeConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	challenge := &domain.Challenge{
		ID:        "ch-1",
		Method:    domain.MethodPasskeyRegister,
		Value:     "abc",
		Subject:   "user-1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, challenge, time.Minute))

	got, err := store.Consume(ctx, domain.MethodPasskeyRegister, "ch-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.Value)
	assert.Equal(t, "user-1", got.Subject)

	got, err = store.Consume(ctx, domain.MethodPasskeyRegister, "ch-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChallengeConsumeIsMethodScoped(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	challenge := &domain.Challenge{
		ID:        "ch-1",
		Method:    domain.MethodPasskeyRegister,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, challenge, time.Minute))

	got, err := store.Consume(ctx, domain.MethodPasskeyAuthenticate, "ch-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// the registration challenge is still intact
	got, err = store.Consume(ctx, domain.MethodPasskeyRegister, "ch-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestChallengeExpires(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	challenge := &domain.Challenge{
		ID:        "ch-1",
		Method:    domain.MethodPasskeyAuthenticate,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, challenge, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	got, err := store.Consume(ctx, domain.MethodPasskeyAuthenticate, "ch-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChallengeUnknownIDIsNil(t *testing.T) {
	store := NewMemoryChallengeStore()

	got, err := store.Consume(context.Background(), domain.MethodPasskeyAuthenticate, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// memoryStoreCapacity caps the in-memory stores so entries that are never
// read back cannot grow the process unbounded.
const memoryStoreCapacity = 65536

type memoryChallengeStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.Challenge]
}

// NewMemoryChallengeStore returns an in-memory implementation. Used when no
// Redis is configured and in tests. Expiry is enforced on read, no janitor
// goroutine.
func NewMemoryChallengeStore() ChallengeStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.Challenge](),
		ttlcache.WithCapacity[string, *domain.Challenge](memoryStoreCapacity),
	)
	return &memoryChallengeStore{cache: cache}
}

func (s *memoryChallengeStore) Create(_ context.Context, challenge *domain.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(challengeKey(challenge.Method, challenge.ID), challenge, ttl)
	return nil
}

func (s *memoryChallengeStore) Consume(_ context.Context, method domain.ChallengeMethod, id string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey(method, id)
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, nil
	}
	s.cache.Delete(key)
	return item.Value(), nil
}

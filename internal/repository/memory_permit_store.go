package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

type memoryPermitStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.BirthdatePermit]
	now   func() time.Time
}

// NewMemoryPermitStore returns an in-memory implementation. Used when no
// Redis is configured and in tests. Expiry is enforced on read, no janitor
// goroutine; the capacity cap bounds growth from never-read entries.
func NewMemoryPermitStore() PermitStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.BirthdatePermit](),
		ttlcache.WithCapacity[string, *domain.BirthdatePermit](memoryStoreCapacity),
	)
	return &memoryPermitStore{cache: cache, now: time.Now}
}

func (s *memoryPermitStore) Put(_ context.Context, permit *domain.BirthdatePermit, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(permit.Subject, permit, permitKeySlack*window)
	return nil
}

func (s *memoryPermitStore) Peek(_ context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(subject)
	if item == nil || item.IsExpired() {
		return nil, nil
	}

	permit := item.Value()
	if permit.Code != code || !sameDate(permit.Birthdate, birthdate) {
		return nil, nil
	}
	if s.now().Sub(permit.CreatedAt) > maxAge {
		return nil, ErrPermitExpired
	}
	return permit, nil
}

func (s *memoryPermitStore) Consume(_ context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(subject)
	if item == nil || item.IsExpired() {
		return nil, nil
	}

	permit := item.Value()
	if permit.Code != code || !sameDate(permit.Birthdate, birthdate) {
		return nil, nil
	}
	if s.now().Sub(permit.CreatedAt) > maxAge {
		s.cache.Delete(subject)
		return nil, ErrPermitExpired
	}

	s.cache.Delete(subject)
	return permit, nil
}

func sameDate(a, b time.Time) bool {
	return a.Format(birthdateLayout) == b.Format(birthdateLayout)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// ChallengeStore persists short-lived, single-use challenges. Consume is
// atomic: of two concurrent verifications against the same challenge,
// exactly one receives it.
type ChallengeStore interface {
	Create(ctx context.Context, challenge *domain.Challenge, ttl time.Duration) error
	Consume(ctx context.Context, method domain.ChallengeMethod, id string) (*domain.Challenge, error)
}

const challengeKeyPrefix = "playrbase:challenge:"

type challengeRecord struct {
	ID        string                 `json:"id"`
	Method    domain.ChallengeMethod `json:"method"`
	Value     string                 `json:"value"`
	Subject   string                 `json:"subject,omitempty"`
	Session   json.RawMessage        `json:"session,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type redisChallengeStore struct {
	client *redis.Client
}

// NewRedisChallengeStore returns a Redis-backed implementation. Expiry is
// enforced by key TTL, consumption by GETDEL.
func NewRedisChallengeStore(client *redis.Client) ChallengeStore {
	return &redisChallengeStore{client: client}
}

func (s *redisChallengeStore) Create(ctx context.Context, challenge *domain.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challengeRecord{
		ID:        challenge.ID,
		Method:    challenge.Method,
		Value:     challenge.Value,
		Subject:   challenge.Subject,
		Session:   challenge.Session,
		CreatedAt: challenge.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, challengeKey(challenge.Method, challenge.ID), payload, ttl).Err()
}

func (s *redisChallengeStore) Consume(ctx context.Context, method domain.ChallengeMethod, id string) (*domain.Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeKey(method, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record challengeRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &domain.Challenge{
		ID:        record.ID,
		Method:    record.Method,
		Value:     record.Value,
		Subject:   record.Subject,
		Session:   record.Session,
		CreatedAt: record.CreatedAt,
	}, nil
}

func challengeKey(method domain.ChallengeMethod, id string) string {
	return challengeKeyPrefix + string(method) + ":" + id
}

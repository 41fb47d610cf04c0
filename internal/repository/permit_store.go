package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// ErrPermitExpired marks a permit that matched but fell outside its window.
var ErrPermitExpired = errors.New("birthdate permit expired")

// PermitStore persists birthdate permits. A subject holds at most one
// pending permit; Consume atomically checks subject, birthdate and code and
// removes the record on success, Peek runs the same checks without removing
// it.
type PermitStore interface {
	Put(ctx context.Context, permit *domain.BirthdatePermit, window time.Duration) error
	Peek(ctx context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error)
	Consume(ctx context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error)
}

const (
	permitKeyPrefix = "playrbase:permit:"
	birthdateLayout = "2006-01-02"

	// Keys outlive the validity window so an expired permit is reported
	// as expired rather than missing.
	permitKeySlack = 2
)

type permitRecord struct {
	Subject     string `json:"subject"`
	Birthdate   string `json:"birthdate"`
	Code        string `json:"code"`
	ParentEmail string `json:"parent_email"`
	CreatedAt   int64  `json:"created_at"`
}

// consumePermitScript deletes the permit only when code and birthdate match
// exactly, so concurrent validations cannot both succeed.
var consumePermitScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return false end
local permit = cjson.decode(raw)
if tostring(permit.code) ~= ARGV[1] or tostring(permit.birthdate) ~= ARGV[2] then
    return 'mismatch'
end
if tonumber(permit.created_at) < tonumber(ARGV[3]) then
    redis.call('DEL', KEYS[1])
    return 'expired'
end
redis.call('DEL', KEYS[1])
return raw
`)

type redisPermitStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisPermitStore returns a Redis-backed implementation.
func NewRedisPermitStore(client *redis.Client) PermitStore {
	return &redisPermitStore{client: client, now: time.Now}
}

func (s *redisPermitStore) Put(ctx context.Context, permit *domain.BirthdatePermit, window time.Duration) error {
	payload, err := json.Marshal(permitRecord{
		Subject:     permit.Subject,
		Birthdate:   permit.Birthdate.Format(birthdateLayout),
		Code:        permit.Code,
		ParentEmail: permit.ParentEmail,
		CreatedAt:   permit.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	ttl := permitKeySlack * window
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.Set(ctx, permitKeyPrefix+permit.Subject, payload, ttl).Err()
}

func (s *redisPermitStore) Peek(ctx context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error) {
	raw, err := s.client.Get(ctx, permitKeyPrefix+subject).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record permitRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	if record.Code != code || record.Birthdate != birthdate.Format(birthdateLayout) {
		return nil, nil
	}
	if record.CreatedAt < s.now().Add(-maxAge).Unix() {
		return nil, ErrPermitExpired
	}
	return permitFromRecord(record)
}

func (s *redisPermitStore) Consume(ctx context.Context, subject string, birthdate time.Time, code string, maxAge time.Duration) (*domain.BirthdatePermit, error) {
	cutoff := s.now().Add(-maxAge).Unix()
	result, err := consumePermitScript.Run(ctx, s.client,
		[]string{permitKeyPrefix + subject},
		code, birthdate.Format(birthdateLayout), cutoff,
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, ok := result.(string)
	if !ok {
		return nil, nil
	}
	switch raw {
	case "mismatch":
		return nil, nil
	case "expired":
		return nil, ErrPermitExpired
	}

	var record permitRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return permitFromRecord(record)
}

func permitFromRecord(record permitRecord) (*domain.BirthdatePermit, error) {
	birthdate, err := time.Parse(birthdateLayout, record.Birthdate)
	if err != nil {
		return nil, err
	}
	return &domain.BirthdatePermit{
		Subject:     record.Subject,
		Birthdate:   birthdate,
		Code:        record.Code,
		ParentEmail: record.ParentEmail,
		CreatedAt:   time.Unix(record.CreatedAt, 0),
	}, nil
}

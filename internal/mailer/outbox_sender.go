package mailer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/theopensource-company/playrbase-auth/internal/config"
)

// OutboxSender queues rendered emails on a redis list instead of sending
// them, so non-production environments can fetch magic links and permit
// codes without a mail server.
type OutboxSender struct {
	cfg    config.MailConfig
	client *redis.Client
}

// NewOutboxSender constructs the sender.
func NewOutboxSender(cfg config.MailConfig, client *redis.Client) *OutboxSender {
	return &OutboxSender{cfg: cfg, client: client}
}

// Send pushes the message onto the outbox list.
func (s *OutboxSender) Send(ctx context.Context, email Email) error {
	if s.client == nil {
		return errors.New("outbox sender: redis client not configured")
	}
	if email.From == "" {
		email.From = s.cfg.From
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, s.cfg.OutboxKey, payload).Err()
}

// Pop retrieves the oldest queued email, if any.
func (s *OutboxSender) Pop(ctx context.Context) (*Email, error) {
	if s.client == nil {
		return nil, errors.New("outbox sender: redis client not configured")
	}
	raw, err := s.client.RPop(ctx, s.cfg.OutboxKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var email Email
	if err := json.Unmarshal([]byte(raw), &email); err != nil {
		return nil, err
	}
	return &email, nil
}

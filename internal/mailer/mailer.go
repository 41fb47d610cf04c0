package mailer

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/config"
)

// Email is the structured outbound message handed to a Sender.
type Email struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers an email or queues it for retrieval. Implementations
// must not block the auth flow on delivery problems beyond returning an
// error; callers log and swallow failures.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender picks SMTP delivery when an endpoint is configured and falls
// back to the redis outbox for non-production retrieval. Without either
// backend emails are logged and dropped.
func NewSender(cfg config.MailConfig, redisClient *redis.Client, logger *zap.Logger) Sender {
	if cfg.SMTPAddr != "" {
		logger.Info("mailer: using smtp delivery", zap.String("addr", cfg.SMTPAddr))
		return NewSMTPSender(cfg)
	}
	if redisClient != nil {
		logger.Warn("mailer: no smtp endpoint configured; queueing to outbox", zap.String("key", cfg.OutboxKey))
		return NewOutboxSender(cfg, redisClient)
	}
	logger.Warn("mailer: no delivery backend configured; emails will be logged only")
	return &logSender{logger: logger}
}

// logSender writes emails to the log instead of delivering them.
type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(_ context.Context, email Email) error {
	s.logger.Info("outbound email",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.Body))
	return nil
}

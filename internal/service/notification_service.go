package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/mailer"
)

// NotificationService turns auth events into outbound email. Send failures
// are logged and swallowed so the originating request never observes them.
type NotificationService struct {
	sender mailer.Sender
	logger *zap.Logger
	from   string
}

// NewNotificationService builds the service.
func NewNotificationService(cfg config.MailConfig, sender mailer.Sender, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender: sender,
		logger: logger,
		from:   cfg.From,
	}
}

// Register subscribes the mail handlers on the dispatcher.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventMagicLinkRequested, s.onMagicLinkRequested)
	dispatcher.Subscribe(events.EventPermitRequested, s.onPermitRequested)
	dispatcher.Subscribe(events.EventEmailChangeRequested, s.onEmailChangeRequested)
}

func (s *NotificationService) onMagicLinkRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MagicLinkRequestedPayload)
	if !ok {
		return nil
	}
	s.send(ctx, mailer.Email{
		To:      payload.Email,
		From:    s.from,
		Subject: "Sign in to PlayrBase",
		Body: fmt.Sprintf(
			"Hey,\n\nUse the link below to sign in. It is valid for a limited time and works once.\n\n%s\n\nIf you did not request this you can safely ignore this email.",
			payload.Link,
		),
	})
	return nil
}

func (s *NotificationService) onPermitRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PermitRequestedPayload)
	if !ok {
		return nil
	}
	s.send(ctx, mailer.Email{
		To:      payload.ParentEmail,
		From:    s.from,
		Subject: "Permission requested for a PlayrBase account",
		Body: fmt.Sprintf(
			"Hey,\n\nSomeone born on %s wants to create a PlayrBase account and listed you as their parent or guardian.\n\nTo allow this, give them the following code: %s\n\nIf you do not recognize this request you can safely ignore this email.",
			payload.Birthdate.Format("2006-01-02"), payload.Code,
		),
	})
	return nil
}

func (s *NotificationService) onEmailChangeRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EmailChangeRequestedPayload)
	if !ok {
		return nil
	}
	s.send(ctx, mailer.Email{
		To:      payload.NewEmail,
		From:    s.from,
		Subject: "Confirm your new PlayrBase email address",
		Body: fmt.Sprintf(
			"Hey,\n\nUse the link below to confirm %s as your new email address.\n\n%s\n\nIf you did not request this you can safely ignore this email.",
			payload.NewEmail, payload.ConfirmLink,
		),
	})
	s.send(ctx, mailer.Email{
		To:      payload.OldEmail,
		From:    s.from,
		Subject: "Your PlayrBase email address is being changed",
		Body: fmt.Sprintf(
			"Hey,\n\nA change of your email address to %s was requested. If this was not you, use the link below within 48 hours to revert it.\n\n%s",
			payload.NewEmail, payload.RevertLink,
		),
	})
	return nil
}

func (s *NotificationService) send(ctx context.Context, email mailer.Email) {
	if err := s.sender.Send(ctx, email); err != nil {
		s.logger.Warn("failed to send email",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
	}
}

package worker

import (
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/service"
)

// StartNotificationWorker wires the notification service onto the event
// dispatcher so auth flows produce outbound email.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil {
		return
	}
	notificationService.Register(dispatcher)
}

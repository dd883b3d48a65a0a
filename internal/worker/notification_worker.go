package worker

import (
	"github.com/spec-kit/helpdesk-sla/internal/service"
)

// StartNotificationWorker registers the change broadcast handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

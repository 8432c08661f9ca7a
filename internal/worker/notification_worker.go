package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/link-access-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to link events.
// Delivery happens synchronously on the publishing request.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		logger.Warn("notifications disabled; link emails will not be sent")
		return
	}
	notifications.RegisterHandlers()
	logger.Info("notification handlers registered")
}

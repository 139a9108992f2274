package notification

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
)

// LogNotifier only logs notifications. It is used when no SMTP host is configured.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: factory.NewModuleLogger("log-notifier")}
}

func (n *LogNotifier) Send(_ context.Context, receiver, notificationType string, params map[string]any) error {
	n.logger.WithFields(logrus.Fields{
		"receiver":          receiver,
		"notification_type": notificationType,
		"params":            params,
	}).Info("notification_logged")
	return nil
}

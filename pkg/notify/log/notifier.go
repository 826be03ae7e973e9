// Package log provides a notify.Notifier that writes to logrus.
package log

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-lifecycle/pkg/metrics"
	"github.com/code-payments/token-lifecycle/pkg/notify"
)

const notificationEventName = "Notification"

type notifier struct {
	log *logrus.Entry
}

// New returns a notify.Notifier that logs every notification and records it
// as a metrics event when a New Relic application is attached to the context.
func New() notify.Notifier {
	return &notifier{
		log: logrus.StandardLogger().WithField("type", "notify/log"),
	}
}

// Success implements notify.Notifier.Success
func (n *notifier) Success(ctx context.Context, message string) {
	n.log.WithField("level", notify.LevelSuccess.String()).Info(message)
	n.record(ctx, notify.LevelSuccess, message)
}

// Failure implements notify.Notifier.Failure
func (n *notifier) Failure(ctx context.Context, message string) {
	n.log.WithField("level", notify.LevelFailure.String()).Warn(message)
	n.record(ctx, notify.LevelFailure, message)
}

func (n *notifier) record(ctx context.Context, level notify.Level, message string) {
	metrics.RecordEvent(ctx, notificationEventName, map[string]interface{}{
		"level":   level.String(),
		"message": message,
	})
}

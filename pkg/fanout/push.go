package fanout

import (
	"context"

	"go.uber.org/zap"

	"msgsync/pkg/logger"
	"msgsync/pkg/models"
)

// PushNotifier is the push-notification collaborator: it receives a
// best-effort "new message" signal per recipient, decoupled from the
// authoritative event stream. Failures are logged and never affect
// delivery-state correctness.
type PushNotifier interface {
	Notify(ctx context.Context, recipient string, evt models.Event) error
}

// LogNotifier is the default collaborator: it only logs. Deployments swap in
// an adapter for their push gateway.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, recipient string, evt models.Event) error {
	logger.Log.Debug("push_notify",
		zap.String("recipient", recipient),
		zap.String("thread", evt.Thread),
		zap.String("message", evt.Message),
	)
	return nil
}

package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/service"
)

// Consumer drains a queue into registered event handlers until ctx is done.
type Consumer interface {
	Run(ctx context.Context) error
}

// StartUserEventsWorker registers the user event handlers and, when a
// broker consumer is configured, runs it until ctx is cancelled.
func StartUserEventsWorker(ctx context.Context, users *service.UserEventsService, consumer Consumer, logger *zap.Logger) error {
	if users == nil {
		return nil
	}
	users.RegisterHandlers()
	if consumer == nil {
		logger.Info("no broker consumer configured; user events handled in-process only")
		return nil
	}
	return consumer.Run(ctx)
}

package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

// NewTaskHandler returns the asynq handler consuming queued audit events.
// A malformed payload is dropped rather than retried.
func NewTaskHandler(service *Service, logger *slog.Logger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var event authz.AuditEvent
		if err := json.Unmarshal(task.Payload(), &event); err != nil {
			if logger != nil {
				logger.Warn("audit payload unmarshal", slog.Any("error", err))
			}
			return nil
		}
		if err := service.Record(ctx, event); err != nil {
			if logger != nil {
				logger.Error("audit record", slog.Any("error", err))
			}
			return err
		}
		return nil
	}
}

// Package jobs hosts the background worker: queued audit persistence and
// the scheduled assignment expiry sweep.
package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAssignmentExpiry is the scheduled task deactivating role
	// assignments past their expiry.
	TaskAssignmentExpiry = "authz:expire_assignments"
)

// NewAssignmentExpiryTask constructs the sweep task. It carries no payload;
// the handler reads current time itself.
func NewAssignmentExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskAssignmentExpiry, nil, asynq.MaxRetry(1))
}

// ExpirySweeper deactivates expired assignments and reports how many
// societes were touched.
type ExpirySweeper interface {
	ExpireAssignments(ctx context.Context) (int, error)
}

// NewAssignmentExpiryHandler returns the asynq handler running the sweep.
func NewAssignmentExpiryHandler(sweeper ExpirySweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		touched, err := sweeper.ExpireAssignments(ctx)
		if err != nil {
			if logger != nil {
				logger.Error("assignment expiry sweep", slog.Any("error", err))
			}
			return err
		}
		if logger != nil && touched > 0 {
			logger.Info("assignment expiry sweep", slog.Int("societes_touched", touched))
		}
		return nil
	}
}

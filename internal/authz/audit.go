package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskAuthzAudit is the asynq task type carrying authorization audit events.
const TaskAuthzAudit = "authz:audit"

// AuditEvent is one authorization outcome worth recording.
type AuditEvent struct {
	PrincipalID int64     `json:"principal_id"`
	SocieteID   string    `json:"societe_id"`
	Route       string    `json:"route"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditSink records events best-effort. Implementations must never block the
// authorization decision; failures are logged, not propagated.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// NewAuditTask wraps an event in an asynq task.
func NewAuditTask(event AuditEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzAudit, payload, asynq.MaxRetry(3)), nil
}

// QueueSink enqueues audit events for the background worker to persist.
type QueueSink struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewQueueSink constructs a sink backed by the asynq client.
func NewQueueSink(client *asynq.Client, logger *slog.Logger) *QueueSink {
	return &QueueSink{client: client, logger: logger}
}

// Record enqueues the event, swallowing failures.
func (s *QueueSink) Record(ctx context.Context, event AuditEvent) {
	if s == nil || s.client == nil {
		return
	}
	task, err := NewAuditTask(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("audit task marshal", slog.Any("error", err))
		}
		return
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		if s.logger != nil {
			s.logger.Warn("audit enqueue", slog.Any("error", err))
		}
	}
}

// NopSink discards events. Useful in tests.
type NopSink struct{}

// Record does nothing.
func (NopSink) Record(context.Context, AuditEvent) {}

var (
	_ AuditSink = (*QueueSink)(nil)
	_ AuditSink = NopSink{}
)

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-id/meridian/internal/jobs"
	"github.com/meridian-id/meridian/internal/permission"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWarmPermissions is the task type that recomputes a user's
	// cached permission string after grants change.
	TaskTypeWarmPermissions = "permissions:warm"
)

// WarmPermissionsPayload identifies the user whose cache entry to rebuild.
type WarmPermissionsPayload struct {
	UserID int64 `json:"userId"`
}

// NewWarmPermissionsTask constructs an Asynq task.
func NewWarmPermissionsTask(payload WarmPermissionsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWarmPermissions, data), nil
}

// NewWarmPermissionsHandler processes TaskTypeWarmPermissions tasks.
func NewWarmPermissionsHandler(logger *slog.Logger, service *permission.Service, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeWarmPermissions)
		var payload WarmPermissionsPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		joined, err := service.WarmPermissionString(ctx, payload.UserID)
		if err != nil {
			logger.Warn("permission warmup failed",
				slog.Int64("user_id", payload.UserID),
				slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Debug("permission cache warmed",
			slog.Int64("user_id", payload.UserID),
			slog.Int("length", len(joined)))
		return tracker.End(nil)
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/fieldops/internal/delivery"
	jobmetrics "github.com/odyssey-erp/fieldops/internal/jobs"
)

// ItemWriter reapplies a single item outcome. delivery.Remote satisfies it.
type ItemWriter interface {
	UpdateItem(ctx context.Context, orderID string, u delivery.ItemUpdate) error
}

// ItemResyncJob replays per-item writes that failed during completion.
type ItemResyncJob struct {
	Writer  ItemWriter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewItemResyncJob constructs the job handler.
func NewItemResyncJob(writer ItemWriter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ItemResyncJob {
	return &ItemResyncJob{Writer: writer, Logger: logger, Metrics: metrics}
}

// Handle executes one resync attempt. Asynq retries on error.
func (j *ItemResyncJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Writer == nil {
		return errors.New("item resync: dependencies not configured")
	}
	var payload ItemResyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.log().Warn("decode payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := payload.validate(); err != nil {
		j.log().Warn("reject payload", slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskItemResync)
	err := j.Writer.UpdateItem(ctx, payload.OrderID, payload.Update())
	switch {
	case err == nil:
		j.metrics().AddResynced(1)
		j.log().Info("item resynced",
			slog.String("batch_id", payload.BatchID),
			slog.String("order_id", payload.OrderID),
			slog.String("item_id", payload.Item.ID))
		return tracker.End(nil)
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, delivery.ErrItemNotFound):
		// The order or item is gone; retrying cannot succeed.
		j.log().Warn("item vanished",
			slog.String("batch_id", payload.BatchID),
			slog.String("order_id", payload.OrderID),
			slog.String("item_id", payload.Item.ID))
		tracker.End(err)
		return fmt.Errorf("item resync: %w: %w", err, asynq.SkipRetry)
	default:
		j.log().Error("item resync failed",
			slog.String("batch_id", payload.BatchID),
			slog.String("order_id", payload.OrderID),
			slog.String("item_id", payload.Item.ID),
			slog.Any("error", err))
		return tracker.End(fmt.Errorf("item resync: %w", err))
	}
}

func (j *ItemResyncJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ItemResyncJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskItemResync))
	}
	return slog.Default().With(slog.String("job", TaskItemResync))
}

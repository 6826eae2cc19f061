package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/fieldops/internal/delivery"
	jobmetrics "github.com/odyssey-erp/fieldops/internal/jobs"
	"github.com/odyssey-erp/fieldops/internal/localcache"
)

// SnapshotStore lists and scopes per-courier cache namespaces.
// *localcache.RedisStore satisfies it.
type SnapshotStore interface {
	localcache.Scoper
	ScanKey(ctx context.Context, key string, fn func(owner string, payload []byte) error) error
}

// CachePruneJob removes order snapshots older than the history window.
type CachePruneJob struct {
	Store   SnapshotStore
	Days    int
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCachePruneJob constructs the job handler. days <= 0 falls back to 7.
func NewCachePruneJob(store SnapshotStore, days int, logger *slog.Logger, metrics *jobmetrics.Metrics) *CachePruneJob {
	return &CachePruneJob{
		Store:   store,
		Days:    days,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the prune.
func (j *CachePruneJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("cache prune: dependencies not configured")
	}
	var payload CachePrunePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	days := payload.Days
	if days <= 0 {
		days = j.Days
	}
	if days <= 0 {
		days = 7
	}

	tracker := j.metrics().Track(TaskCachePrune)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().AddDate(0, 0, -days).Format("2006-01-02")
	var stale []string
	err := j.Store.ScanKey(ctx, localcache.KeyDeliveryOrders, func(owner string, raw []byte) error {
		var snap delivery.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			j.log().Warn("undecodable snapshot", slog.String("owner", owner), slog.Any("error", err))
			stale = append(stale, owner)
			return nil
		}
		// Dates are YYYY-MM-DD so lexical order is calendar order.
		if snap.Date == "" || snap.Date < cutoff {
			stale = append(stale, owner)
		}
		return nil
	})
	if err != nil {
		resultErr = err
		j.log().Error("scan snapshots", slog.Any("error", err))
		return resultErr
	}

	for _, owner := range stale {
		j.Store.Scope(owner).Remove(ctx, localcache.KeyDeliveryOrders)
	}
	j.log().Info("pruned order snapshots", slog.String("cutoff", cutoff), slog.Int("removed", len(stale)))
	return resultErr
}

func (j *CachePruneJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CachePruneJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCachePrune))
	}
	return slog.Default().With(slog.String("job", TaskCachePrune))
}

func (j *CachePruneJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fieldops/internal/delivery"
	jobmetrics "github.com/odyssey-erp/fieldops/internal/jobs"
	"github.com/odyssey-erp/fieldops/internal/localcache"
)

type stubWriter struct {
	calls []delivery.ItemUpdate
	order string

	// Error injection
	err error
}

func (s *stubWriter) UpdateItem(_ context.Context, orderID string, u delivery.ItemUpdate) error {
	s.order = orderID
	s.calls = append(s.calls, u)
	return s.err
}

func resyncTask(t *testing.T) *asynq.Task {
	t.Helper()
	reason := "damaged"
	payload := ItemResyncPayloadOf("batch-1", "ord-1", delivery.ItemUpdate{
		ItemID:            "it-1",
		DeliveredQuantity: 3,
		ReturnedQuantity:  2,
		ReturnReason:      &reason,
	})
	task, err := NewItemResyncTask(payload, 5)
	require.NoError(t, err)
	return task
}

func TestItemResyncPayloadWireFormat(t *testing.T) {
	task := resyncTask(t)
	assert.Equal(t, TaskItemResync, task.Type())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(task.Payload(), &raw))
	assert.Equal(t, "batch-1", raw["batchId"])
	assert.Equal(t, "ord-1", raw["orderId"])
	item := raw["item"].(map[string]any)
	assert.Equal(t, "it-1", item["id"])
	assert.EqualValues(t, 3, item["delivered"])
	assert.EqualValues(t, 2, item["returned"])
	assert.Equal(t, "damaged", item["reason"])
}

func TestNewItemResyncTaskRejectsIncompletePayload(t *testing.T) {
	_, err := NewItemResyncTask(ItemResyncPayload{OrderID: "ord-1"}, 0)
	assert.ErrorIs(t, err, errInvalidPayload)
}

func TestItemResyncJobReappliesWrite(t *testing.T) {
	writer := &stubWriter{}
	job := NewItemResyncJob(writer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), resyncTask(t)))
	require.Len(t, writer.calls, 1)
	assert.Equal(t, "ord-1", writer.order)
	assert.Equal(t, "it-1", writer.calls[0].ItemID)
	assert.Equal(t, 3, writer.calls[0].DeliveredQuantity)
	require.NotNil(t, writer.calls[0].ReturnReason)
	assert.Equal(t, "damaged", *writer.calls[0].ReturnReason)
}

func TestItemResyncJobErrors(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())

	t.Run("malformed payload skips retry", func(t *testing.T) {
		job := NewItemResyncJob(&stubWriter{}, nil, metrics)
		err := job.Handle(context.Background(), asynq.NewTask(TaskItemResync, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("missing ids skip retry", func(t *testing.T) {
		writer := &stubWriter{}
		job := NewItemResyncJob(writer, nil, metrics)
		err := job.Handle(context.Background(), asynq.NewTask(TaskItemResync, []byte(`{"orderId":"ord-1"}`)))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, writer.calls)
	})

	t.Run("transient failure retries", func(t *testing.T) {
		boom := errors.New("connection reset")
		job := NewItemResyncJob(&stubWriter{err: boom}, nil, metrics)
		err := job.Handle(context.Background(), resyncTask(t))
		assert.ErrorIs(t, err, boom)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("vanished item skips retry", func(t *testing.T) {
		job := NewItemResyncJob(&stubWriter{err: delivery.ErrNotFound}, nil, metrics)
		err := job.Handle(context.Background(), resyncTask(t))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, delivery.ErrNotFound)
	})

	t.Run("unconfigured", func(t *testing.T) {
		var job *ItemResyncJob
		assert.Error(t, job.Handle(context.Background(), resyncTask(t)))
	})
}

func TestCachePruneJobRemovesStaleSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := localcache.NewRedisStore(client, 0, nil)
	store.Scope("fresh").Set(ctx, localcache.KeyDeliveryOrders, delivery.Snapshot{Date: "2026-10-15"})
	store.Scope("stale").Set(ctx, localcache.KeyDeliveryOrders, delivery.Snapshot{Date: "2026-09-01"})
	store.Scope("stale").Set(ctx, localcache.KeyUserSession, map[string]string{"userId": "stale"})
	require.NoError(t, client.Set(ctx, "fieldops:cache:broken:"+localcache.KeyDeliveryOrders, "not json", 0).Err())

	job := NewCachePruneJob(store, 7, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC) }

	task, err := NewCachePruneTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	var snap delivery.Snapshot
	assert.True(t, store.Scope("fresh").Get(ctx, localcache.KeyDeliveryOrders, &snap))
	assert.False(t, store.Scope("stale").Get(ctx, localcache.KeyDeliveryOrders, &snap))
	assert.False(t, mr.Exists("fieldops:cache:broken:"+localcache.KeyDeliveryOrders))

	var session map[string]string
	assert.True(t, store.Scope("stale").Get(ctx, localcache.KeyUserSession, &session))
}

func TestCachePruneJobPayloadOverridesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := localcache.NewRedisStore(client, 0, nil)
	store.Scope("c1").Set(ctx, localcache.KeyDeliveryOrders, delivery.Snapshot{Date: "2026-10-16"})

	job := NewCachePruneJob(store, 30, nil, nil)
	job.clock = func() time.Time { return time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC) }

	task, err := NewCachePruneTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	var snap delivery.Snapshot
	assert.False(t, store.Scope("c1").Get(ctx, localcache.KeyDeliveryOrders, &snap))
}

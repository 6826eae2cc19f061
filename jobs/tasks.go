package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/fieldops/internal/delivery"
	jobmetrics "github.com/odyssey-erp/fieldops/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskItemResync retries a per-item write that failed after completion.
	TaskItemResync = "delivery:item_resync"
	// TaskCachePrune drops cached order snapshots that fell out of the history window.
	TaskCachePrune = "delivery:cache_prune"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

var errInvalidPayload = errors.New("jobs: invalid payload")

// ResyncItem is the wire form of a per-item outcome.
type ResyncItem struct {
	ID        string  `json:"id"`
	Delivered int     `json:"delivered"`
	Returned  int     `json:"returned"`
	Reason    *string `json:"reason,omitempty"`
}

// ItemResyncPayload identifies the failed write and the values to reapply.
type ItemResyncPayload struct {
	BatchID string     `json:"batchId"`
	OrderID string     `json:"orderId"`
	Item    ResyncItem `json:"item"`
}

// ItemResyncPayloadOf builds the payload for a failed item write.
func ItemResyncPayloadOf(batchID, orderID string, u delivery.ItemUpdate) ItemResyncPayload {
	return ItemResyncPayload{
		BatchID: batchID,
		OrderID: orderID,
		Item: ResyncItem{
			ID:        u.ItemID,
			Delivered: u.DeliveredQuantity,
			Returned:  u.ReturnedQuantity,
			Reason:    u.ReturnReason,
		},
	}
}

// Update converts the payload back into the remote write.
func (p ItemResyncPayload) Update() delivery.ItemUpdate {
	return delivery.ItemUpdate{
		ItemID:            p.Item.ID,
		DeliveredQuantity: p.Item.Delivered,
		ReturnedQuantity:  p.Item.Returned,
		ReturnReason:      p.Item.Reason,
	}
}

func (p ItemResyncPayload) validate() error {
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.Item.ID) == "" {
		return errInvalidPayload
	}
	if p.Item.Delivered < 0 || p.Item.Returned < 0 {
		return errInvalidPayload
	}
	return nil
}

// NewItemResyncTask constructs an Asynq task. maxRetry <= 0 keeps the asynq default.
func NewItemResyncTask(payload ItemResyncPayload, maxRetry int) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault)}
	if maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(maxRetry))
	}
	return asynq.NewTask(TaskItemResync, data, opts...), nil
}

// CachePrunePayload carries the window override; zero uses the job default.
type CachePrunePayload struct {
	Days int `json:"days,omitempty"`
}

// NewCachePruneTask constructs the prune task.
func NewCachePruneTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(CachePrunePayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCachePrune, data, asynq.Queue(QueueDefault)), nil
}

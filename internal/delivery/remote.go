package delivery

import (
	"context"
	"time"
)

// ListQuery scopes a bulk order read. Date is a YYYY-MM-DD calendar day and
// matches order_date exactly. An empty DistributionIDs applies no channel filter.
type ListQuery struct {
	Date            string
	BookerUserIDs   []string
	DistributionIDs []string
}

// ItemUpdate is the per-item write issued after an order completes.
type ItemUpdate struct {
	ItemID            string
	DeliveredQuantity int
	ReturnedQuantity  int
	ReturnReason      *string
}

// ItemUpdateOf extracts the outcome fields of it.
func ItemUpdateOf(it Item) ItemUpdate {
	return ItemUpdate{
		ItemID:            it.ID,
		DeliveredQuantity: it.DeliveredQuantity,
		ReturnedQuantity:  it.ReturnedQuantity,
		ReturnReason:      it.ReturnReason,
	}
}

// Remote is the system of record for orders. Implementations enforce scope on
// their side: UpdateOrder only touches exported, non-terminal orders of the
// scope's bookers and distributions, and reports ErrNotFound otherwise.
type Remote interface {
	ResolveBookers(ctx context.Context, salesmanIDs []string) ([]Booker, error)
	ListOrders(ctx context.Context, q ListQuery) ([]Order, error)
	UpdateOrder(ctx context.Context, scope Scope, orderID string, p Patch) error
	UpdateItem(ctx context.Context, orderID string, u ItemUpdate) error
	History(ctx context.Context, courierSalesmanID string, from, to time.Time) ([]Order, error)
	LifetimeOutcomes(ctx context.Context, courierSalesmanID string) ([]Outcome, error)
}

// AssignmentSource resolves which bookers and distributions a courier serves.
type AssignmentSource interface {
	Assignments(ctx context.Context, userID string) (Assignments, error)
}

// Connectivity reports whether the remote is currently reachable.
type Connectivity interface {
	IsConnected() bool
}

// ItemResyncer queues a failed per-item write for a later retry.
type ItemResyncer interface {
	EnqueueItemResync(ctx context.Context, batchID, orderID string, u ItemUpdate) error
}

// Outcome is the minimal record lifetime statistics need.
type Outcome struct {
	Status          Status
	CollectedAmount float64
}

type alwaysConnected struct{}

func (alwaysConnected) IsConnected() bool { return true }

// Package delivery owns the courier's order lifecycle: fetching the day's
// exported orders, the start/complete/fail transitions, and the derived views
// used by the field app.
package delivery

import (
	"time"
)

// ============================================================================
// DELIVERY STATUS
// ============================================================================

// Status is the delivery lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"          // Initial state on export
	StatusOutForDelivery Status = "out_for_delivery" // Courier is on the way
	StatusDelivered      Status = "delivered"        // Everything delivered
	StatusPartial        Status = "partial"          // Some items returned
	StatusFailed         Status = "failed"           // Could not deliver
	StatusReturned       Status = "returned"         // Everything returned
)

// TerminalStatuses lists the states no transition leaves.
var TerminalStatuses = []Status{StatusDelivered, StatusPartial, StatusFailed, StatusReturned}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusOutForDelivery, StatusDelivered, StatusPartial, StatusFailed, StatusReturned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order has left the active lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusPartial, StatusFailed, StatusReturned:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether at least part of the order reached the store.
func (s Status) IsSuccessful() bool {
	return s == StatusDelivered || s == StatusPartial
}

// PaymentMethod records how the collected amount was paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentOnline PaymentMethod = "online"
)

// IsValid checks if the payment method is known.
func (p PaymentMethod) IsValid() bool {
	return p == PaymentCash || p == PaymentCredit || p == PaymentOnline
}

// Filter selects orders by delivery status. FilterAll passes everything through.
type Filter string

// FilterAll matches every order.
const FilterAll Filter = "all"

// ParseFilter accepts "all" or any valid status. Unknown values map to FilterAll.
func ParseFilter(raw string) Filter {
	if s := Status(raw); s.IsValid() {
		return Filter(s)
	}
	return FilterAll
}

// ============================================================================
// ORDER ENTITIES
// ============================================================================

// Order is one store delivery assignment for a calendar day.
type Order struct {
	ID               string         `json:"id"`
	OrderNumber      string         `json:"orderNumber"`
	StoreID          *string        `json:"storeId"`
	StoreName        string         `json:"storeName"`
	StoreAddress     string         `json:"storeAddress"`
	StorePhone       *string        `json:"storePhone"`
	StoreLatitude    *float64       `json:"storeLatitude"`
	StoreLongitude   *float64       `json:"storeLongitude"`
	TotalAmount      float64        `json:"totalAmount"`
	Status           string         `json:"status"`
	DistributionID   *string        `json:"distributionId"`
	DistributionName *string        `json:"distributionName"`
	OrderDate        string         `json:"orderDate"`
	CreatedAt        time.Time      `json:"createdAt"`
	BookerName       *string        `json:"bookerName"`
	BookerID         *string        `json:"bookerId"`
	BookerSalesmanID *string        `json:"bookerSalesmanId"`
	DeliveryStatus   Status         `json:"deliveryStatus"`
	DeliverySmID     *string        `json:"deliverySmId"`
	DeliveredAt      *time.Time     `json:"deliveredAt"`
	CollectedAmount  *float64       `json:"collectedAmount"`
	PaymentMethod    *PaymentMethod `json:"paymentMethod"`
	DeliveryNotes    *string        `json:"deliveryNotes"`
	Items            []Item         `json:"items"`
	ItemsCount       int            `json:"itemsCount"`
}

// Item is one product line within an order.
type Item struct {
	ID                string  `json:"id"`
	ProductID         *string `json:"productId"`
	ProductCode       string  `json:"productCode"`
	ProductName       string  `json:"productName"`
	Price             float64 `json:"price"`
	Quantity          int     `json:"quantity"`
	LineTotal         float64 `json:"lineTotal"`
	DeliveredQuantity int     `json:"deliveredQuantity"`
	ReturnedQuantity  int     `json:"returnedQuantity"`
	ReturnReason      *string `json:"returnReason"`
}

// HasCoordinates reports whether both store coordinates are known.
func (o Order) HasCoordinates() bool {
	return o.StoreLatitude != nil && o.StoreLongitude != nil
}

// Clone returns a copy that shares no mutable memory with o.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]Item, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}

// CountItems sums ordered quantities.
func CountItems(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// ============================================================================
// DERIVED VIEWS
// ============================================================================

// Stats aggregates the in-memory order set.
type Stats struct {
	TotalOrders          int     `json:"totalOrders"`
	PendingCount         int     `json:"pendingCount"`
	OutForDeliveryCount  int     `json:"outForDeliveryCount"`
	DeliveredCount       int     `json:"deliveredCount"`
	FailedCount          int     `json:"failedCount"`
	TotalAmountToCollect float64 `json:"totalAmountToCollect"`
	TotalCollected       float64 `json:"totalCollected"`
}

// Snapshot is the cached copy of the last fetched order set.
type Snapshot struct {
	Date      string    `json:"date"`
	FetchedAt time.Time `json:"fetchedAt"`
	Orders    []Order   `json:"orders"`
}

// Identity names the courier a manager acts for.
type Identity struct {
	UserID     string `json:"userId"`
	SalesmanID string `json:"salesmanId"`
}

// Resolved reports whether both ids are present.
func (i Identity) Resolved() bool {
	return i.UserID != "" && i.SalesmanID != ""
}

// Assignments are the booker salesman ids and distribution channels a courier serves.
type Assignments struct {
	BookerSalesmanIDs []string `json:"bookerSalesmanIds"`
	DistributionIDs   []string `json:"distributionIds"`
}

// Booker is a resolved upstream order creator.
type Booker struct {
	UserID     string
	SalesmanID string
	Name       string
}

// Scope is the authorization boundary for reads and writes of one courier.
type Scope struct {
	CourierSalesmanID string
	BookerUserIDs     []string
	DistributionIDs   []string
}

package delivery

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterByStatus returns the orders matching filter in their original order.
// FilterAll returns the input untouched.
func FilterByStatus(orders []Order, filter Filter) []Order {
	if filter == FilterAll || filter == "" {
		return orders
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if Filter(o.DeliveryStatus) == filter {
			out = append(out, o)
		}
	}
	return out
}

// ComputeStats buckets orders the way the courier dashboard reports them:
// partial counts as delivered, returned counts as failed.
func ComputeStats(orders []Order) Stats {
	s := Stats{TotalOrders: len(orders)}
	for _, o := range orders {
		switch o.DeliveryStatus {
		case StatusPending:
			s.PendingCount++
			s.TotalAmountToCollect += o.TotalAmount
		case StatusOutForDelivery:
			s.OutForDeliveryCount++
			s.TotalAmountToCollect += o.TotalAmount
		case StatusDelivered, StatusPartial:
			s.DeliveredCount++
			if o.CollectedAmount != nil {
				s.TotalCollected += *o.CollectedAmount
			}
		case StatusFailed, StatusReturned:
			s.FailedCount++
		}
	}
	return s
}

var folder = cases.Fold()

// Search keeps orders whose store name, address, order number or booker name
// contains query, ignoring case. A blank query returns the input untouched.
func Search(orders []Order, query string) []Order {
	needle := folder.String(strings.TrimSpace(query))
	if needle == "" {
		return orders
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if matches(o, needle) {
			out = append(out, o)
		}
	}
	return out
}

func matches(o Order, needle string) bool {
	fields := []string{o.StoreName, o.StoreAddress, o.OrderNumber}
	if o.BookerName != nil {
		fields = append(fields, *o.BookerName)
	}
	for _, f := range fields {
		if strings.Contains(folder.String(f), needle) {
			return true
		}
	}
	return false
}

// FindByID returns the order with id.
func FindByID(orders []Order, id string) (Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

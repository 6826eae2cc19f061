package delivery

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// DateLayout is the calendar-day format used for orderDate and the selected date.
const DateLayout = "2006-01-02"

const unknownStore = "Unknown Store"

// orderRow mirrors the joined orders/stores/distributions projection.
type orderRow struct {
	ID                 string
	OrderNumber        string
	StoreID            *string
	StoreName          *string
	StoreAddress       *string
	JoinedStoreName    *string
	JoinedStoreAddress *string
	StorePhone         *string
	StoreLatitude      *float64
	StoreLongitude     *float64
	TotalAmount        float64
	Status             string
	DistributionID     *string
	DistributionName   *string
	OrderDate          pgtype.Date
	CreatedAt          pgtype.Timestamptz
	UserID             *string
	BookerName         *string
	BookerSalesmanID   *string
	DeliveryStatus     *string
	DeliverySmID       *string
	DeliveredAt        pgtype.Timestamptz
	CollectedAmount    *float64
	PaymentMethod      *string
	DeliveryNotes      *string
}

type itemRow struct {
	ID                string
	OrderID           string
	ProductID         *string
	ProductCode       *string
	ProductName       *string
	Price             float64
	Quantity          int
	LineTotal         float64
	DeliveredQuantity *int
	ReturnedQuantity  *int
	ReturnReason      *string
}

func mapItem(r itemRow) Item {
	it := Item{
		ID:           r.ID,
		ProductID:    r.ProductID,
		ProductCode:  deref(r.ProductCode),
		ProductName:  deref(r.ProductName),
		Price:        r.Price,
		Quantity:     r.Quantity,
		LineTotal:    r.LineTotal,
		ReturnReason: r.ReturnReason,
	}
	// Lines never touched by a courier default to fully delivered.
	it.DeliveredQuantity = it.Quantity
	if r.DeliveredQuantity != nil {
		it.DeliveredQuantity = *r.DeliveredQuantity
	}
	if r.ReturnedQuantity != nil {
		it.ReturnedQuantity = *r.ReturnedQuantity
	}
	return it
}

func mapOrder(r orderRow, items []Item) Order {
	o := Order{
		ID:               r.ID,
		OrderNumber:      r.OrderNumber,
		StoreID:          r.StoreID,
		StoreName:        firstNonEmpty(r.StoreName, r.JoinedStoreName, unknownStore),
		StoreAddress:     firstNonEmpty(r.StoreAddress, r.JoinedStoreAddress, ""),
		StorePhone:       nonEmpty(r.StorePhone),
		TotalAmount:      r.TotalAmount,
		Status:           r.Status,
		DistributionID:   r.DistributionID,
		DistributionName: r.DistributionName,
		BookerID:         r.UserID,
		BookerName:       nonEmpty(r.BookerName),
		BookerSalesmanID: nonEmpty(r.BookerSalesmanID),
		DeliveryStatus:   StatusPending,
		DeliverySmID:     r.DeliverySmID,
		CollectedAmount:  r.CollectedAmount,
		DeliveryNotes:    r.DeliveryNotes,
		Items:            items,
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	o.ItemsCount = CountItems(o.Items)

	if r.StoreLatitude != nil && r.StoreLongitude != nil {
		o.StoreLatitude = r.StoreLatitude
		o.StoreLongitude = r.StoreLongitude
	}
	if r.CreatedAt.Valid {
		o.CreatedAt = r.CreatedAt.Time
	}
	switch {
	case r.OrderDate.Valid:
		o.OrderDate = r.OrderDate.Time.Format(DateLayout)
	case r.CreatedAt.Valid:
		o.OrderDate = r.CreatedAt.Time.Format(DateLayout)
	}
	if r.DeliveryStatus != nil {
		if s := Status(*r.DeliveryStatus); s.IsValid() {
			o.DeliveryStatus = s
		}
	}
	if r.DeliveredAt.Valid {
		at := r.DeliveredAt.Time
		o.DeliveredAt = &at
	}
	if r.PaymentMethod != nil {
		if pm := PaymentMethod(*r.PaymentMethod); pm.IsValid() {
			o.PaymentMethod = &pm
		}
	}
	return o
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func firstNonEmpty(primary, secondary *string, fallback string) string {
	if primary != nil && *primary != "" {
		return *primary
	}
	if secondary != nil && *secondary != "" {
		return *secondary
	}
	return fallback
}

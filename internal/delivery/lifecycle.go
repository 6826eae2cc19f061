package delivery

import (
	"strings"
	"time"
)

// Completion is the proof-of-delivery a courier submits for an order.
type Completion struct {
	Items           []Item
	CollectedAmount float64
	PaymentMethod   PaymentMethod
	Notes           string
}

// ============================================================================
// ITEM RECONCILIATION
// ============================================================================

// QuantityField selects which side of an item adjustment the courier edited.
type QuantityField int

const (
	FieldDelivered QuantityField = iota
	FieldReturned
)

// AdjustItem sets one quantity of it, clamped to [0, Quantity], and derives
// the other side so that delivered + returned == quantity.
func AdjustItem(it Item, field QuantityField, value int) Item {
	v := clamp(value, 0, it.Quantity)
	switch field {
	case FieldReturned:
		it.ReturnedQuantity = v
		it.DeliveredQuantity = it.Quantity - v
	default:
		it.DeliveredQuantity = v
		it.ReturnedQuantity = it.Quantity - v
	}
	if it.ReturnedQuantity == 0 {
		it.ReturnReason = nil
	}
	return it
}

// NormalizeItem repairs an item whose quantities do not reconcile, treating
// the delivered quantity as authoritative. Reconciled items pass unchanged.
func NormalizeItem(it Item) Item {
	if it.Quantity < 0 {
		it.Quantity = 0
	}
	if it.DeliveredQuantity < 0 || it.ReturnedQuantity < 0 ||
		it.DeliveredQuantity+it.ReturnedQuantity != it.Quantity {
		return AdjustItem(it, FieldDelivered, it.DeliveredQuantity)
	}
	if it.ReturnedQuantity == 0 {
		it.ReturnReason = nil
	}
	return it
}

// NewCompletionItems returns the order's items in their default completion
// state: everything delivered, nothing returned.
func NewCompletionItems(o Order) []Item {
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.DeliveredQuantity = it.Quantity
		it.ReturnedQuantity = 0
		it.ReturnReason = nil
		items[i] = it
	}
	return items
}

// MergeCompletionItems overlays submitted outcomes onto the order's items.
// Ordered quantity and commercial fields always come from the order; items
// not submitted keep the default completion state.
func MergeCompletionItems(o Order, submitted []Item) ([]Item, error) {
	byID := make(map[string]Item, len(submitted))
	for _, it := range submitted {
		byID[it.ID] = it
	}
	items := NewCompletionItems(o)
	for i := range items {
		sub, ok := byID[items[i].ID]
		if !ok {
			continue
		}
		delete(byID, items[i].ID)
		items[i].DeliveredQuantity = sub.DeliveredQuantity
		items[i].ReturnedQuantity = sub.ReturnedQuantity
		items[i].ReturnReason = normalizeReason(sub.ReturnReason)
		items[i] = NormalizeItem(items[i])
	}
	if len(byID) > 0 {
		return nil, ErrUnknownItem
	}
	return items, nil
}

// ValidateCompletion applies the checks the completion form performs before
// submitting: reasons for returns, a usable amount and payment method.
func ValidateCompletion(c Completion) error {
	if err := RequireReturnReasons(c.Items); err != nil {
		return err
	}
	if c.CollectedAmount < 0 {
		return ErrInvalidAmount
	}
	if !c.PaymentMethod.IsValid() {
		return ErrInvalidPayment
	}
	return nil
}

// RequireReturnReasons fails when any item returns stock without a reason.
func RequireReturnReasons(items []Item) error {
	for _, it := range items {
		if it.ReturnedQuantity > 0 && normalizeReason(it.ReturnReason) == nil {
			return ErrMissingReturnReason
		}
	}
	return nil
}

// ============================================================================
// STATUS DERIVATION
// ============================================================================

// Totals sums quantities across an order's items.
type Totals struct {
	Ordered        int     `json:"ordered"`
	Delivered      int     `json:"delivered"`
	Returned       int     `json:"returned"`
	DeliveredValue float64 `json:"deliveredValue"`
}

// TotalsOf aggregates items.
func TotalsOf(items []Item) Totals {
	var t Totals
	for _, it := range items {
		t.Ordered += it.Quantity
		t.Delivered += it.DeliveredQuantity
		t.Returned += it.ReturnedQuantity
		t.DeliveredValue += float64(it.DeliveredQuantity) * it.Price
	}
	return t
}

// DeriveStatus computes the terminal status of a completed order. Totals that
// do not reconcile are rejected rather than guessed.
func DeriveStatus(t Totals) (Status, error) {
	if t.Delivered < 0 || t.Returned < 0 || t.Delivered+t.Returned != t.Ordered {
		return "", ErrInconsistentTotals
	}
	switch {
	case t.Returned == t.Ordered:
		return StatusReturned, nil
	case t.Delivered == t.Ordered && t.Returned == 0:
		return StatusDelivered, nil
	default:
		return StatusPartial, nil
	}
}

// ============================================================================
// TRANSITION PATCHES
// ============================================================================

// Patch is a single transition. It is written to the remote order record as
// is and, once that write succeeds, applied to memory with Apply.
type Patch struct {
	Status          Status
	DeliverySmID    string
	DeliveredAt     *time.Time
	CollectedAmount *float64
	PaymentMethod   *PaymentMethod
	SetNotes        bool
	Notes           *string
	Items           []Item
}

// StartPatch moves an order out for delivery.
func StartPatch(courier string) Patch {
	return Patch{Status: StatusOutForDelivery, DeliverySmID: courier}
}

// FailurePatch marks an order failed with the courier's reason.
func FailurePatch(courier, reason string) Patch {
	return Patch{
		Status:       StatusFailed,
		DeliverySmID: courier,
		SetNotes:     true,
		Notes:        &reason,
	}
}

// CompletionPatch builds the terminal transition for reconciled items.
func CompletionPatch(courier string, items []Item, amount float64, method PaymentMethod, notes string, at time.Time) (Patch, error) {
	status, err := DeriveStatus(TotalsOf(items))
	if err != nil {
		return Patch{}, err
	}
	for _, it := range items {
		if it.DeliveredQuantity+it.ReturnedQuantity != it.Quantity {
			return Patch{}, ErrInconsistentTotals
		}
	}
	delivered := at
	collected := amount
	pm := method
	p := Patch{
		Status:          status,
		DeliverySmID:    courier,
		DeliveredAt:     &delivered,
		CollectedAmount: &collected,
		PaymentMethod:   &pm,
		SetNotes:        true,
		Items:           append([]Item(nil), items...),
	}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		p.Notes = &trimmed
	}
	return p, nil
}

// Apply returns a copy of o with the patch applied.
func Apply(o Order, p Patch) Order {
	out := o.Clone()
	if p.Status != "" {
		out.DeliveryStatus = p.Status
	}
	if p.DeliverySmID != "" {
		sm := p.DeliverySmID
		out.DeliverySmID = &sm
	}
	if p.DeliveredAt != nil {
		at := *p.DeliveredAt
		out.DeliveredAt = &at
	}
	if p.CollectedAmount != nil {
		amount := *p.CollectedAmount
		out.CollectedAmount = &amount
	}
	if p.PaymentMethod != nil {
		pm := *p.PaymentMethod
		out.PaymentMethod = &pm
	}
	if p.SetNotes {
		if p.Notes != nil {
			notes := *p.Notes
			out.DeliveryNotes = &notes
		} else {
			out.DeliveryNotes = nil
		}
	}
	if p.Items != nil {
		out.Items = append([]Item(nil), p.Items...)
		out.ItemsCount = CountItems(out.Items)
	}
	return out
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

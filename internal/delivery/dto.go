package delivery

// CompletionItemRequest is one line of a proof-of-delivery submission.
type CompletionItemRequest struct {
	ID                string  `json:"id" validate:"required"`
	DeliveredQuantity int     `json:"deliveredQuantity" validate:"gte=0"`
	ReturnedQuantity  int     `json:"returnedQuantity" validate:"gte=0"`
	ReturnReason      *string `json:"returnReason" validate:"omitempty,max=500"`
}

// CompleteRequest is the body of the completion endpoint.
type CompleteRequest struct {
	Items           []CompletionItemRequest `json:"items" validate:"dive"`
	CollectedAmount float64                 `json:"collectedAmount" validate:"gte=0"`
	PaymentMethod   PaymentMethod           `json:"paymentMethod" validate:"required,oneof=cash credit online"`
	Notes           string                  `json:"notes" validate:"max=1000"`
}

// Completion converts the request into the lifecycle input.
func (r CompleteRequest) Completion() Completion {
	items := make([]Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = Item{
			ID:                it.ID,
			DeliveredQuantity: it.DeliveredQuantity,
			ReturnedQuantity:  it.ReturnedQuantity,
			ReturnReason:      it.ReturnReason,
		}
	}
	return Completion{
		Items:           items,
		CollectedAmount: r.CollectedAmount,
		PaymentMethod:   r.PaymentMethod,
		Notes:           r.Notes,
	}
}

// FailRequest is the body of the failure endpoint.
type FailRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// DateRequest selects the managed day.
type DateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// FilterRequest selects the active status filter.
type FilterRequest struct {
	Status string `json:"status" validate:"required,oneof=all pending out_for_delivery delivered partial failed returned"`
}

// OrdersResponse is the home screen payload.
type OrdersResponse struct {
	Orders []Order `json:"orders"`
	Stats  Stats   `json:"stats"`
	State  State   `json:"state"`
}

// FetchResponse reports a fetch triggered by the client.
type FetchResponse struct {
	Source FetchSource `json:"source"`
	State  State       `json:"state"`
}

package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   Status
	}{
		{"all delivered", Totals{Ordered: 10, Delivered: 10, Returned: 0}, StatusDelivered},
		{"all returned", Totals{Ordered: 10, Delivered: 0, Returned: 10}, StatusReturned},
		{"mixed", Totals{Ordered: 10, Delivered: 6, Returned: 4}, StatusPartial},
		{"empty order", Totals{}, StatusReturned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveStatus(tt.totals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveStatus_InconsistentTotalsRejected(t *testing.T) {
	for _, totals := range []Totals{
		{Ordered: 10, Delivered: 7, Returned: 2},
		{Ordered: 10, Delivered: 10, Returned: 1},
		{Ordered: 10, Delivered: 11, Returned: -1},
	} {
		status, err := DeriveStatus(totals)
		assert.ErrorIs(t, err, ErrInconsistentTotals)
		assert.NotEqual(t, StatusDelivered, status)
	}
}

func TestAdjustItem_Clamping(t *testing.T) {
	base := Item{ID: "i1", Quantity: 10, DeliveredQuantity: 10}

	t.Run("delivered above quantity clamps and zeroes returned", func(t *testing.T) {
		got := AdjustItem(base, FieldDelivered, 15)
		assert.Equal(t, 10, got.DeliveredQuantity)
		assert.Equal(t, 0, got.ReturnedQuantity)
	})

	t.Run("negative delivered clamps to zero", func(t *testing.T) {
		got := AdjustItem(base, FieldDelivered, -3)
		assert.Equal(t, 0, got.DeliveredQuantity)
		assert.Equal(t, 10, got.ReturnedQuantity)
	})

	t.Run("returned derives delivered", func(t *testing.T) {
		got := AdjustItem(base, FieldReturned, 4)
		assert.Equal(t, 6, got.DeliveredQuantity)
		assert.Equal(t, 4, got.ReturnedQuantity)
	})

	t.Run("reason cleared when returned drops to zero", func(t *testing.T) {
		returned := AdjustItem(base, FieldReturned, 3)
		returned.ReturnReason = strPtr("damaged")

		got := AdjustItem(returned, FieldDelivered, 12)
		assert.Equal(t, 0, got.ReturnedQuantity)
		assert.Nil(t, got.ReturnReason)

		got = AdjustItem(returned, FieldReturned, 1)
		require.NotNil(t, got.ReturnReason)
		assert.Equal(t, "damaged", *got.ReturnReason)
	})

	t.Run("invariant holds across a range of inputs", func(t *testing.T) {
		for v := -5; v <= 20; v++ {
			for _, f := range []QuantityField{FieldDelivered, FieldReturned} {
				got := AdjustItem(base, f, v)
				assert.Equal(t, got.Quantity, got.DeliveredQuantity+got.ReturnedQuantity)
				assert.GreaterOrEqual(t, got.DeliveredQuantity, 0)
				assert.GreaterOrEqual(t, got.ReturnedQuantity, 0)
			}
		}
	})
}

func TestNormalizeItem(t *testing.T) {
	ok := Item{Quantity: 5, DeliveredQuantity: 3, ReturnedQuantity: 2}
	assert.Equal(t, ok, NormalizeItem(ok))

	broken := Item{Quantity: 5, DeliveredQuantity: 10, ReturnedQuantity: 2, ReturnReason: strPtr("expired")}
	got := NormalizeItem(broken)
	assert.Equal(t, 5, got.DeliveredQuantity)
	assert.Equal(t, 0, got.ReturnedQuantity)
	assert.Nil(t, got.ReturnReason)

	stale := Item{Quantity: 5, DeliveredQuantity: 5, ReturnReason: strPtr("expired")}
	assert.Nil(t, NormalizeItem(stale).ReturnReason)
}

func TestMergeCompletionItems_DerivedReturnNeedsReason(t *testing.T) {
	items, err := MergeCompletionItems(sampleOrder(), []Item{
		{ID: "i2", DeliveredQuantity: 3, ReturnedQuantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, items[1].ReturnedQuantity)
	assert.ErrorIs(t, RequireReturnReasons(items), ErrMissingReturnReason)

	items[1].ReturnReason = strPtr("short shipped")
	assert.NoError(t, RequireReturnReasons(items))
}

func sampleOrder() Order {
	return Order{
		ID:             "o1",
		OrderNumber:    "ORD-001",
		StoreName:      "Al Noor Store",
		TotalAmount:    1500,
		DeliveryStatus: StatusOutForDelivery,
		Items: []Item{
			{ID: "i1", ProductCode: "P1", Quantity: 10, Price: 100, LineTotal: 1000, DeliveredQuantity: 10},
			{ID: "i2", ProductCode: "P2", Quantity: 5, Price: 100, LineTotal: 500, DeliveredQuantity: 5},
		},
		ItemsCount: 15,
	}
}

func TestMergeCompletionItems(t *testing.T) {
	o := sampleOrder()

	items, err := MergeCompletionItems(o, []Item{
		{ID: "i2", DeliveredQuantity: 3, ReturnedQuantity: 2, ReturnReason: strPtr("  damaged ")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 10, items[0].DeliveredQuantity)
	assert.Equal(t, 0, items[0].ReturnedQuantity)
	assert.Equal(t, 3, items[1].DeliveredQuantity)
	assert.Equal(t, 2, items[1].ReturnedQuantity)
	require.NotNil(t, items[1].ReturnReason)
	assert.Equal(t, "damaged", *items[1].ReturnReason)
}

func TestMergeCompletionItems_QuantityComesFromOrder(t *testing.T) {
	o := sampleOrder()

	items, err := MergeCompletionItems(o, []Item{
		{ID: "i1", Quantity: 500, DeliveredQuantity: 15, ReturnedQuantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, items[0].Quantity)
	assert.Equal(t, 10, items[0].DeliveredQuantity)
	assert.Equal(t, 0, items[0].ReturnedQuantity)
}

func TestMergeCompletionItems_UnknownItem(t *testing.T) {
	_, err := MergeCompletionItems(sampleOrder(), []Item{{ID: "nope"}})
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestValidateCompletion(t *testing.T) {
	valid := Completion{
		Items:           []Item{{ID: "i1", Quantity: 2, DeliveredQuantity: 1, ReturnedQuantity: 1, ReturnReason: strPtr("expired")}},
		CollectedAmount: 0,
		PaymentMethod:   PaymentCash,
	}
	require.NoError(t, ValidateCompletion(valid))

	missing := valid
	missing.Items = []Item{{ID: "i1", Quantity: 2, DeliveredQuantity: 1, ReturnedQuantity: 1, ReturnReason: strPtr("   ")}}
	assert.ErrorIs(t, ValidateCompletion(missing), ErrMissingReturnReason)

	negative := valid
	negative.CollectedAmount = -1
	assert.ErrorIs(t, ValidateCompletion(negative), ErrInvalidAmount)

	badMethod := valid
	badMethod.PaymentMethod = "barter"
	assert.ErrorIs(t, ValidateCompletion(badMethod), ErrInvalidPayment)
}

func TestCompletionPatch(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	items := NewCompletionItems(sampleOrder())
	items[1] = AdjustItem(items[1], FieldReturned, 5)

	p, err := CompletionPatch("SM-9", items, 1000, PaymentCash, "  ", at)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, p.Status)
	assert.Equal(t, "SM-9", p.DeliverySmID)
	assert.True(t, p.SetNotes)
	assert.Nil(t, p.Notes)
	assert.Equal(t, at, *p.DeliveredAt)
	assert.Equal(t, 1000.0, *p.CollectedAmount)
}

func TestCompletionPatch_RejectsUnreconciledItem(t *testing.T) {
	items := []Item{
		{ID: "a", Quantity: 5, DeliveredQuantity: 6, ReturnedQuantity: 0},
		{ID: "b", Quantity: 5, DeliveredQuantity: 4, ReturnedQuantity: 0},
	}
	_, err := CompletionPatch("SM-9", items, 0, PaymentCash, "", time.Now())
	assert.ErrorIs(t, err, ErrInconsistentTotals)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	o := sampleOrder()
	o.DeliveryNotes = strPtr("call before")

	started := Apply(o, StartPatch("SM-1"))
	assert.Equal(t, StatusOutForDelivery, started.DeliveryStatus)
	assert.Equal(t, "SM-1", *started.DeliverySmID)
	assert.Equal(t, "call before", *started.DeliveryNotes)
	assert.Nil(t, o.DeliverySmID)

	failed := Apply(o, FailurePatch("SM-1", "shop closed"))
	assert.Equal(t, StatusFailed, failed.DeliveryStatus)
	assert.Equal(t, "shop closed", *failed.DeliveryNotes)

	items := NewCompletionItems(o)
	items[0] = AdjustItem(items[0], FieldDelivered, 0)
	p, err := CompletionPatch("SM-1", items, 0, PaymentCredit, "", time.Now())
	require.NoError(t, err)
	done := Apply(o, p)
	assert.Nil(t, done.DeliveryNotes)
	assert.Equal(t, 0, done.Items[0].DeliveredQuantity)
	assert.Equal(t, 10, o.Items[0].DeliveredQuantity)
	assert.Equal(t, 15, done.ItemsCount)
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range TerminalStatuses {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusOutForDelivery.IsTerminal())
	assert.False(t, Status("lost").IsValid())
	assert.Equal(t, FilterAll, ParseFilter("whatever"))
	assert.Equal(t, Filter(StatusPartial), ParseFilter("partial"))
}

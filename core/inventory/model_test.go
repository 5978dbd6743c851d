package inventory_test

import (
	"testing"
	"time"

	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		quantity, reserved, reorderPoint int64
		want                             inventory.StockStatus
	}{
		{0, 0, 0, inventory.OutOfStock},
		{0, 0, 5, inventory.OutOfStock},
		{3, 3, 0, inventory.NotAvailableForSale},
		{10, 0, 0, inventory.InStock},
		{10, 0, 10, inventory.LowStock},
		{10, 2, 9, inventory.LowStock},
		{10, 2, 7, inventory.InStock},
	}

	for _, test := range tests {
		got := inventory.Classify(test.quantity, test.reserved, test.reorderPoint)
		if got != test.want {
			t.Errorf("Classify(%d, %d, %d) got=%s want=%s", test.quantity, test.reserved, test.reorderPoint, got, test.want)
		}
	}
}

func TestSummary(t *testing.T) {
	ps := inventory.ProductStock{
		Locations: []inventory.LocationStock{{LocationName: "Main", Quantity: 5}, {LocationName: "Retail", Quantity: 3}},
		Total:     8,
	}
	assert.Equal(t, "Main: 5 | Retail: 3 → Total: 8", ps.Summary())
	assert.Equal(t, "Total: 0", inventory.ProductStock{}.Summary())
}

func TestDeltas(t *testing.T) {
	transfer := inventory.MovementRecord{ProductID: "sku-1", FromLocationID: "main", ToLocationID: "retail", Quantity: 4}
	assert.Equal(t, map[inventory.BalanceKey]int64{
		{ProductID: "sku-1", LocationID: "main"}:   -4,
		{ProductID: "sku-1", LocationID: "retail"}: 4,
	}, transfer.Deltas())

	sale := inventory.MovementRecord{ProductID: "sku-1", FromLocationID: "retail", Quantity: 1}
	assert.Equal(t, map[inventory.BalanceKey]int64{{ProductID: "sku-1", LocationID: "retail"}: -1}, sale.Deltas())
}

func TestFilterMatches(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := inventory.MovementRecord{BusinessID: "biz-1", ProductID: "sku-1", FromLocationID: "main", ToLocationID: "retail", Kind: inventory.Transfer, ReferenceID: "po-1", Created: at}

	assert.True(t, inventory.MovementFilter{}.Matches(m))
	assert.True(t, inventory.MovementFilter{LocationID: "retail"}.Matches(m))
	assert.True(t, inventory.MovementFilter{DateFrom: at, DateTo: at.Add(time.Second)}.Matches(m))
	assert.False(t, inventory.MovementFilter{DateTo: at}.Matches(m))
	assert.False(t, inventory.MovementFilter{LocationID: "attic"}.Matches(m))
	assert.False(t, inventory.MovementFilter{Kind: inventory.Sale}.Matches(m))
	assert.False(t, inventory.MovementFilter{ReferenceID: "po-2"}.Matches(m))
	assert.False(t, inventory.MovementFilter{BusinessID: "biz-2"}.Matches(m))
}

func TestParseMovementKind(t *testing.T) {
	for _, v := range []string{"transfer", "sale", "adjustment", "initial_stock", ""} {
		_, err := inventory.ParseMovementKind(v)
		assert.NoError(t, err, v)
	}
	_, err := inventory.ParseMovementKind("gift")
	assert.Error(t, err)
}

func TestTransferErrorMessage(t *testing.T) {
	err := &inventory.TransferError{
		Kind:    inventory.InsufficientStock,
		Message: "not enough stock at source location",
		Lines:   []inventory.LineError{{Index: 1, ProductID: "sku-2", Reason: "insufficient stock at source"}},
	}
	assert.Equal(t, "InsufficientStock: not enough stock at source location; line 1 (sku-2): insufficient stock at source", err.Error())
	assert.True(t, inventory.ConcurrencyConflict.Retryable())
	assert.False(t, inventory.InsufficientStock.Retryable())
	assert.Equal(t, inventory.ErrorKind(""), inventory.KindOf(nil))
	assert.False(t, inventory.IsKind(nil, inventory.InvalidRequest))
}

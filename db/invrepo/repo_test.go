package invrepo

import (
	"testing"
	"time"

	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/stretchr/testify/assert"
)

func TestMovementWhere(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tests := []struct {
		name      string
		filter    inventory.MovementFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name: "no filter",
		},
		{
			name:      "business only",
			filter:    inventory.MovementFilter{BusinessID: "biz-1"},
			wantWhere: "WHERE business_id = $1",
			wantArgs:  []interface{}{"biz-1"},
		},
		{
			name: "every field",
			filter: inventory.MovementFilter{
				BusinessID:  "biz-1",
				ProductID:   "sku-1",
				LocationID:  "loc-1",
				Kind:        inventory.Sale,
				ReferenceID: "order-9",
				DateFrom:    from,
				DateTo:      to,
			},
			wantWhere: "WHERE business_id = $1 AND product_id = $2 AND (from_location_id = $3 OR to_location_id = $3) AND kind = $4 AND reference_id = $5 AND created_at >= $6 AND created_at < $7",
			wantArgs:  []interface{}{"biz-1", "sku-1", "loc-1", "sale", "order-9", from, to},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			where, args := movementWhere(test.filter)
			assert.Equal(t, test.wantWhere, where)
			assert.Equal(t, test.wantArgs, args)
		})
	}
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	if got := nullable("loc-1"); assert.NotNil(t, got) {
		assert.Equal(t, "loc-1", *got)
	}
}

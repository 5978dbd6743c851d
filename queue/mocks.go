package queue

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/testutil"
)

type MockQueue struct {
	PublishMovementsFunc func(ctx context.Context, records []inventory.MovementRecord) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishMovementsFunc: func(ctx context.Context, records []inventory.MovementRecord) error {
			return nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (m *MockQueue) PublishMovements(ctx context.Context, records []inventory.MovementRecord) error {
	m.AddCall(ctx, records)
	return m.PublishMovementsFunc(ctx, records)
}

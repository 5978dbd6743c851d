package inventory

import "context"

// TransferService is every write the inventory core accepts.
type TransferService interface {
	Execute(ctx context.Context, req TransferRequest) (TransferResult, error)
	Reserve(ctx context.Context, rr ReservationRequest) (StockBalance, error)
	Release(ctx context.Context, rr ReservationRequest) (StockBalance, error)
	SetThresholds(ctx context.Context, tr ThresholdRequest) (StockBalance, error)

	SubscribeMovements(ch chan<- MovementRecord) MovementSubscriptionID
	UnsubscribeMovements(id MovementSubscriptionID)
}

type StockService interface {
	CurrentQuantity(ctx context.Context, productID, locationID string) (int64, error)
	CurrentQuantities(ctx context.Context, productID string) (map[string]int64, error)
	ProductStock(ctx context.Context, businessID string, productIDs ...string) ([]ProductStock, error)
	Reconcile(ctx context.Context, productID string) ([]Discrepancy, error)
}

type MovementService interface {
	Query(ctx context.Context, businessID string, filter MovementFilter, page, pageSize int) (MovementPage, error)
}

var (
	_ TransferService = (*Orchestrator)(nil)
	_ StockService    = (*Aggregator)(nil)
	_ MovementService = (*QueryService)(nil)
)

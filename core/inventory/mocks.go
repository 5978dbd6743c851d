package inventory

import (
	"context"

	"github.com/sksmith/go-stock-ledger/testutil"
)

type MockTransferService struct {
	ExecuteFunc              func(ctx context.Context, req TransferRequest) (TransferResult, error)
	ReserveFunc              func(ctx context.Context, rr ReservationRequest) (StockBalance, error)
	ReleaseFunc              func(ctx context.Context, rr ReservationRequest) (StockBalance, error)
	SetThresholdsFunc        func(ctx context.Context, tr ThresholdRequest) (StockBalance, error)
	SubscribeMovementsFunc   func(ch chan<- MovementRecord) MovementSubscriptionID
	UnsubscribeMovementsFunc func(id MovementSubscriptionID)
	*testutil.CallWatcher
}

func NewMockTransferService() MockTransferService {
	return MockTransferService{
		ExecuteFunc: func(ctx context.Context, req TransferRequest) (TransferResult, error) {
			return TransferResult{}, nil
		},
		ReserveFunc: func(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
			return StockBalance{ProductID: rr.ProductID, LocationID: rr.LocationID}, nil
		},
		ReleaseFunc: func(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
			return StockBalance{ProductID: rr.ProductID, LocationID: rr.LocationID}, nil
		},
		SetThresholdsFunc: func(ctx context.Context, tr ThresholdRequest) (StockBalance, error) {
			return StockBalance{ProductID: tr.ProductID, LocationID: tr.LocationID, ReorderPoint: tr.ReorderPoint, MaxStock: tr.MaxStock}, nil
		},
		SubscribeMovementsFunc:   func(ch chan<- MovementRecord) MovementSubscriptionID { return "" },
		UnsubscribeMovementsFunc: func(id MovementSubscriptionID) {},
		CallWatcher:              testutil.NewCallWatcher(),
	}
}

func (s *MockTransferService) Execute(ctx context.Context, req TransferRequest) (TransferResult, error) {
	s.AddCall(ctx, req)
	return s.ExecuteFunc(ctx, req)
}

func (s *MockTransferService) Reserve(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
	s.AddCall(ctx, rr)
	return s.ReserveFunc(ctx, rr)
}

func (s *MockTransferService) Release(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
	s.AddCall(ctx, rr)
	return s.ReleaseFunc(ctx, rr)
}

func (s *MockTransferService) SetThresholds(ctx context.Context, tr ThresholdRequest) (StockBalance, error) {
	s.AddCall(ctx, tr)
	return s.SetThresholdsFunc(ctx, tr)
}

func (s *MockTransferService) SubscribeMovements(ch chan<- MovementRecord) MovementSubscriptionID {
	s.AddCall(ch)
	return s.SubscribeMovementsFunc(ch)
}

func (s *MockTransferService) UnsubscribeMovements(id MovementSubscriptionID) {
	s.AddCall(id)
	s.UnsubscribeMovementsFunc(id)
}

type MockStockService struct {
	CurrentQuantityFunc   func(ctx context.Context, productID, locationID string) (int64, error)
	CurrentQuantitiesFunc func(ctx context.Context, productID string) (map[string]int64, error)
	ProductStockFunc      func(ctx context.Context, businessID string, productIDs ...string) ([]ProductStock, error)
	ReconcileFunc         func(ctx context.Context, productID string) ([]Discrepancy, error)
	*testutil.CallWatcher
}

func NewMockStockService() MockStockService {
	return MockStockService{
		CurrentQuantityFunc: func(ctx context.Context, productID, locationID string) (int64, error) { return 0, nil },
		CurrentQuantitiesFunc: func(ctx context.Context, productID string) (map[string]int64, error) {
			return map[string]int64{}, nil
		},
		ProductStockFunc: func(ctx context.Context, businessID string, productIDs ...string) ([]ProductStock, error) {
			return []ProductStock{}, nil
		},
		ReconcileFunc: func(ctx context.Context, productID string) ([]Discrepancy, error) { return nil, nil },
		CallWatcher:   testutil.NewCallWatcher(),
	}
}

func (s *MockStockService) CurrentQuantity(ctx context.Context, productID, locationID string) (int64, error) {
	s.AddCall(ctx, productID, locationID)
	return s.CurrentQuantityFunc(ctx, productID, locationID)
}

func (s *MockStockService) CurrentQuantities(ctx context.Context, productID string) (map[string]int64, error) {
	s.AddCall(ctx, productID)
	return s.CurrentQuantitiesFunc(ctx, productID)
}

func (s *MockStockService) ProductStock(ctx context.Context, businessID string, productIDs ...string) ([]ProductStock, error) {
	s.AddCall(ctx, businessID, productIDs)
	return s.ProductStockFunc(ctx, businessID, productIDs...)
}

func (s *MockStockService) Reconcile(ctx context.Context, productID string) ([]Discrepancy, error) {
	s.AddCall(ctx, productID)
	return s.ReconcileFunc(ctx, productID)
}

type MockMovementService struct {
	QueryFunc func(ctx context.Context, businessID string, filter MovementFilter, page, pageSize int) (MovementPage, error)
	*testutil.CallWatcher
}

func NewMockMovementService() MockMovementService {
	return MockMovementService{
		QueryFunc: func(ctx context.Context, businessID string, filter MovementFilter, page, pageSize int) (MovementPage, error) {
			return MovementPage{Movements: []MovementView{}, Page: page, PageSize: pageSize}, nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (s *MockMovementService) Query(ctx context.Context, businessID string, filter MovementFilter, page, pageSize int) (MovementPage, error) {
	s.AddCall(ctx, businessID, filter, page, pageSize)
	return s.QueryFunc(ctx, businessID, filter, page, pageSize)
}

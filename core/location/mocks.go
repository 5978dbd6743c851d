package location

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/testutil"
)

type MockLocationService struct {
	ListActiveLocationsFunc func(ctx context.Context, businessID string) ([]Location, error)
	GetLocationFunc         func(ctx context.Context, id string) (Location, error)
	CreateFunc              func(ctx context.Context, req CreateLocationRequest) (Location, error)
	DeactivateFunc          func(ctx context.Context, id string) error
	*testutil.CallWatcher
}

func NewMockLocationService() MockLocationService {
	return MockLocationService{
		ListActiveLocationsFunc: func(ctx context.Context, businessID string) ([]Location, error) { return []Location{}, nil },
		GetLocationFunc:         func(ctx context.Context, id string) (Location, error) { return Location{}, core.ErrNotFound },
		CreateFunc: func(ctx context.Context, req CreateLocationRequest) (Location, error) {
			return Location{ID: "loc-1", BusinessID: req.BusinessID, Name: req.Name, LocalName: req.LocalName, Kind: req.Kind, Active: true}, nil
		},
		DeactivateFunc: func(ctx context.Context, id string) error { return nil },
		CallWatcher:    testutil.NewCallWatcher(),
	}
}

func (s *MockLocationService) ListActiveLocations(ctx context.Context, businessID string) ([]Location, error) {
	s.AddCall(ctx, businessID)
	return s.ListActiveLocationsFunc(ctx, businessID)
}

func (s *MockLocationService) GetLocation(ctx context.Context, id string) (Location, error) {
	s.AddCall(ctx, id)
	return s.GetLocationFunc(ctx, id)
}

func (s *MockLocationService) Create(ctx context.Context, req CreateLocationRequest) (Location, error) {
	s.AddCall(ctx, req)
	return s.CreateFunc(ctx, req)
}

func (s *MockLocationService) Deactivate(ctx context.Context, id string) error {
	s.AddCall(ctx, id)
	return s.DeactivateFunc(ctx, id)
}

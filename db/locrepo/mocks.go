package locrepo

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/testutil"
)

type MockRepo struct {
	GetLocationFunc        func(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error)
	GetActiveLocationsFunc func(ctx context.Context, businessID string, options ...core.QueryOptions) ([]location.Location, error)
	SaveLocationFunc       func(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error
	*testutil.CallWatcher
}

func NewMockRepo() MockRepo {
	return MockRepo{
		GetLocationFunc: func(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error) {
			return location.Location{}, core.ErrNotFound
		},
		GetActiveLocationsFunc: func(ctx context.Context, businessID string, options ...core.QueryOptions) ([]location.Location, error) {
			return []location.Location{}, nil
		},
		SaveLocationFunc: func(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error { return nil },
		CallWatcher:      testutil.NewCallWatcher(),
	}
}

func (r MockRepo) GetLocation(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error) {
	r.AddCall(ctx, id, options)
	return r.GetLocationFunc(ctx, id, options...)
}

func (r MockRepo) GetActiveLocations(ctx context.Context, businessID string, options ...core.QueryOptions) ([]location.Location, error) {
	r.AddCall(ctx, businessID, options)
	return r.GetActiveLocationsFunc(ctx, businessID, options...)
}

func (r MockRepo) SaveLocation(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error {
	r.AddCall(ctx, loc, options)
	return r.SaveLocationFunc(ctx, loc, options...)
}

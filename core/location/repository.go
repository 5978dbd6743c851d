package location

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core"
)

type Repository interface {
	GetLocation(ctx context.Context, id string, options ...core.QueryOptions) (Location, error)
	GetActiveLocations(ctx context.Context, businessID string, options ...core.QueryOptions) ([]Location, error)

	SaveLocation(ctx context.Context, location Location, options ...core.UpdateOptions) error
}

package inventory

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// QueryService is the read side of the ledger.
type QueryService struct {
	ledger    LedgerReader
	locations Locations
}

func NewQueryService(ledger LedgerReader, locations Locations) *QueryService {
	return &QueryService{ledger: ledger, locations: locations}
}

// Query returns one page of a business's movements, newest first. Pages start at 1; out of range page sizes are
// clamped rather than rejected.
func (q *QueryService) Query(ctx context.Context, businessID string, filter MovementFilter, page, pageSize int) (MovementPage, error) {
	if businessID == "" {
		return MovementPage{}, newError(InvalidRequest, "business id is required")
	}
	if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() && filter.DateTo.Before(filter.DateFrom) {
		return MovementPage{}, newError(InvalidRequest, "dateTo cannot be before dateFrom")
	}
	filter.BusinessID = businessID

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	records, total, err := q.ledger.QueryMovements(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return MovementPage{}, errors.WithStack(err)
	}

	labels := make(map[string]string)
	views := make([]MovementView, 0, len(records))
	for _, r := range records {
		from, err := q.label(ctx, labels, r.FromLocationID, r, true)
		if err != nil {
			return MovementPage{}, err
		}
		to, err := q.label(ctx, labels, r.ToLocationID, r, false)
		if err != nil {
			return MovementPage{}, err
		}
		views = append(views, MovementView{MovementRecord: r, FromLabel: from, ToLabel: to})
	}

	totalPages := (total + pageSize - 1) / pageSize
	return MovementPage{
		Movements:   views,
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1 && total > 0,
	}, nil
}

func (q *QueryService) label(ctx context.Context, cache map[string]string, locationID string, r MovementRecord, origin bool) (string, error) {
	if locationID == "" {
		return externalLabel(r, origin), nil
	}
	if l, ok := cache[locationID]; ok {
		return l, nil
	}
	loc, err := q.locations.GetLocation(ctx, locationID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return "", errors.WithStack(err)
		}
		cache[locationID] = locationID
		return locationID, nil
	}
	cache[locationID] = loc.DisplayName()
	return cache[locationID], nil
}

func externalLabel(r MovementRecord, origin bool) string {
	if !origin && r.ExternalLabel != "" {
		return r.ExternalLabel
	}
	switch {
	case origin && r.Kind == InitialStock:
		return "initial stock"
	case !origin && r.Kind == Sale:
		return "sold"
	default:
		return "—"
	}
}

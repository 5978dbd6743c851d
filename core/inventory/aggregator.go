package inventory

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
)

// Aggregator answers "how much is where" from the materialized balances.
type Aggregator struct {
	balances  BalanceReader
	ledger    LedgerReader
	locations Locations
}

func NewAggregator(balances BalanceReader, ledger LedgerReader, locations Locations) *Aggregator {
	return &Aggregator{balances: balances, ledger: ledger, locations: locations}
}

// CurrentQuantity is zero for a product that has never been at the location.
func (a *Aggregator) CurrentQuantity(ctx context.Context, productID, locationID string) (int64, error) {
	quantities, err := a.CurrentQuantities(ctx, productID)
	if err != nil {
		return 0, err
	}
	return quantities[locationID], nil
}

func (a *Aggregator) CurrentQuantities(ctx context.Context, productID string) (map[string]int64, error) {
	balances, err := a.balances.GetProductBalances(ctx, productID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	quantities := make(map[string]int64, len(balances))
	for _, b := range balances {
		quantities[b.LocationID] = b.Quantity
	}
	return quantities, nil
}

// ProductStock builds the combined view of each product across the active locations of a business. An inactive
// location still shows up while it holds stock, so the total always matches the ledger.
func (a *Aggregator) ProductStock(ctx context.Context, businessID string, productIDs ...string) ([]ProductStock, error) {
	const funcName = "ProductStock"

	log.Debug().
		Str("func", funcName).
		Str("businessId", businessID).
		Strs("productIds", productIDs).
		Msg("aggregating product stock")

	active, err := a.locations.ListActiveLocations(ctx, businessID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result := make([]ProductStock, 0, len(productIDs))
	for _, productID := range productIDs {
		balances, err := a.balances.GetProductBalances(ctx, productID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ps, err := a.productStock(ctx, businessID, productID, active, balances)
		if err != nil {
			return nil, err
		}
		result = append(result, ps)
	}
	return result, nil
}

func (a *Aggregator) productStock(ctx context.Context, businessID, productID string, active []location.Location, balances []StockBalance) (ProductStock, error) {
	byLocation := make(map[string]StockBalance, len(balances))
	for _, b := range balances {
		byLocation[b.LocationID] = b
	}

	ps := ProductStock{ProductID: productID, Locations: make([]LocationStock, 0, len(active))}
	var reorderPoint int64

	add := func(loc location.Location, b StockBalance) {
		ps.Locations = append(ps.Locations, LocationStock{
			LocationID:   loc.ID,
			LocationName: loc.DisplayName(),
			Quantity:     b.Quantity,
			Reserved:     b.Reserved,
			Available:    b.Available(),
			ReorderPoint: b.ReorderPoint,
			MaxStock:     b.MaxStock,
			Status:       Classify(b.Quantity, b.Reserved, b.ReorderPoint),
		})
		ps.Total += b.Quantity
		ps.Reserved += b.Reserved
		reorderPoint += b.ReorderPoint
	}

	seen := make(map[string]struct{}, len(active))
	for _, loc := range active {
		seen[loc.ID] = struct{}{}
		add(loc, byLocation[loc.ID])
	}

	var stranded []StockBalance
	for _, b := range balances {
		if _, ok := seen[b.LocationID]; !ok && b.Quantity != 0 {
			stranded = append(stranded, b)
		}
	}
	sort.Slice(stranded, func(i, j int) bool { return stranded[i].LocationID < stranded[j].LocationID })

	for _, b := range stranded {
		loc, err := a.locations.GetLocation(ctx, b.LocationID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return ProductStock{}, errors.WithStack(err)
		}
		if loc.BusinessID != businessID {
			continue
		}
		add(loc, b)
	}

	ps.Available = ps.Total - ps.Reserved
	ps.Status = Classify(ps.Total, ps.Reserved, reorderPoint)
	return ps, nil
}

// Reconcile replays the ledger for a product and reports every location whose materialized balance disagrees
// with it. An empty result means the two are consistent.
func (a *Aggregator) Reconcile(ctx context.Context, productID string) ([]Discrepancy, error) {
	const funcName = "Reconcile"

	ledger, err := a.ledger.LedgerQuantities(ctx, productID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	materialized, err := a.CurrentQuantities(ctx, productID)
	if err != nil {
		return nil, err
	}

	locations := make(map[string]struct{}, len(ledger)+len(materialized))
	for id := range ledger {
		locations[id] = struct{}{}
	}
	for id := range materialized {
		locations[id] = struct{}{}
	}

	var discrepancies []Discrepancy
	for id := range locations {
		if ledger[id] != materialized[id] {
			discrepancies = append(discrepancies, Discrepancy{
				ProductID:    productID,
				LocationID:   id,
				Materialized: materialized[id],
				Ledger:       ledger[id],
			})
		}
	}
	sort.Slice(discrepancies, func(i, j int) bool { return discrepancies[i].LocationID < discrepancies[j].LocationID })

	if len(discrepancies) > 0 {
		log.Error().
			Str("func", funcName).
			Str("productId", productID).
			Int("discrepancies", len(discrepancies)).
			Msg("materialized balances disagree with the ledger")
	}
	return discrepancies, nil
}

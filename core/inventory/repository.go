package inventory

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
)

func rollback(ctx context.Context, tx core.Transaction, err error) {
	if tx == nil {
		return
	}
	e := tx.Rollback(ctx)
	if e != nil {
		log.Warn().Err(e).AnErr("cause", err).Msg("failed to rollback")
	}
}

type Transactional interface {
	BeginTransaction(ctx context.Context) (core.Transaction, error)
}

type Repository interface {
	Transactional
	LedgerRepository
	BalanceRepository
}

// LedgerRepository is the append-only movement log. AppendMovements must apply every record's balance deltas in
// the same transaction as the records themselves, and must fail with core.ErrConflict rather than leave a balance
// negative.
type LedgerRepository interface {
	LedgerReader
	AppendMovements(ctx context.Context, records []MovementRecord, options ...core.UpdateOptions) error
}

type LedgerReader interface {
	QueryMovements(ctx context.Context, filter MovementFilter, limit, offset int, options ...core.QueryOptions) ([]MovementRecord, int, error)

	// LedgerQuantities replays the ledger for a product and returns the resulting quantity per location.
	LedgerQuantities(ctx context.Context, productID string, options ...core.QueryOptions) (map[string]int64, error)
}

type BalanceRepository interface {
	BalanceReader

	// GetBalances returns the balance for each key. Keys with no balance yet map to a zero StockBalance. With
	// ForUpdate the returned rows stay locked until the transaction ends.
	GetBalances(ctx context.Context, keys []BalanceKey, options ...core.QueryOptions) (map[BalanceKey]StockBalance, error)

	// SaveBalanceSettings writes reserved and threshold values. It never changes Quantity.
	SaveBalanceSettings(ctx context.Context, balance StockBalance, options ...core.UpdateOptions) error
}

type BalanceReader interface {
	GetProductBalances(ctx context.Context, productID string, options ...core.QueryOptions) ([]StockBalance, error)
}

// Locations is the part of the location registry the inventory services depend on.
type Locations interface {
	GetLocation(ctx context.Context, id string) (location.Location, error)
	ListActiveLocations(ctx context.Context, businessID string) ([]location.Location, error)
}

// Locker serializes orchestrator work on the given keys. The returned func releases them.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

type Queue interface {
	PublishMovements(ctx context.Context, records []MovementRecord) error
}

// Invalidator is implemented by read caches that must drop a product's balances after a write.
type Invalidator interface {
	Invalidate(productIDs ...string)
}

package invrepo

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/db"
	"github.com/sksmith/go-stock-ledger/testutil"
)

type MockRepo struct {
	BeginTransactionFunc    func(ctx context.Context) (core.Transaction, error)
	GetBalancesFunc         func(ctx context.Context, keys []inventory.BalanceKey, options ...core.QueryOptions) (map[inventory.BalanceKey]inventory.StockBalance, error)
	GetProductBalancesFunc  func(ctx context.Context, productID string, options ...core.QueryOptions) ([]inventory.StockBalance, error)
	SaveBalanceSettingsFunc func(ctx context.Context, balance inventory.StockBalance, options ...core.UpdateOptions) error
	AppendMovementsFunc     func(ctx context.Context, records []inventory.MovementRecord, options ...core.UpdateOptions) error
	QueryMovementsFunc      func(ctx context.Context, filter inventory.MovementFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.MovementRecord, int, error)
	LedgerQuantitiesFunc    func(ctx context.Context, productID string, options ...core.QueryOptions) (map[string]int64, error)
	*testutil.CallWatcher
}

func NewMockRepo() MockRepo {
	return MockRepo{
		BeginTransactionFunc: func(ctx context.Context) (core.Transaction, error) { return db.NewMockTransaction(), nil },
		GetBalancesFunc: func(ctx context.Context, keys []inventory.BalanceKey, options ...core.QueryOptions) (map[inventory.BalanceKey]inventory.StockBalance, error) {
			balances := make(map[inventory.BalanceKey]inventory.StockBalance, len(keys))
			for _, k := range keys {
				balances[k] = inventory.StockBalance{ProductID: k.ProductID, LocationID: k.LocationID}
			}
			return balances, nil
		},
		GetProductBalancesFunc: func(ctx context.Context, productID string, options ...core.QueryOptions) ([]inventory.StockBalance, error) {
			return []inventory.StockBalance{}, nil
		},
		SaveBalanceSettingsFunc: func(ctx context.Context, balance inventory.StockBalance, options ...core.UpdateOptions) error { return nil },
		AppendMovementsFunc: func(ctx context.Context, records []inventory.MovementRecord, options ...core.UpdateOptions) error {
			return nil
		},
		QueryMovementsFunc: func(ctx context.Context, filter inventory.MovementFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.MovementRecord, int, error) {
			return []inventory.MovementRecord{}, 0, nil
		},
		LedgerQuantitiesFunc: func(ctx context.Context, productID string, options ...core.QueryOptions) (map[string]int64, error) {
			return map[string]int64{}, nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (r MockRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	r.AddCall(ctx)
	return r.BeginTransactionFunc(ctx)
}

func (r MockRepo) GetBalances(ctx context.Context, keys []inventory.BalanceKey, options ...core.QueryOptions) (map[inventory.BalanceKey]inventory.StockBalance, error) {
	r.AddCall(ctx, keys, options)
	return r.GetBalancesFunc(ctx, keys, options...)
}

func (r MockRepo) GetProductBalances(ctx context.Context, productID string, options ...core.QueryOptions) ([]inventory.StockBalance, error) {
	r.AddCall(ctx, productID, options)
	return r.GetProductBalancesFunc(ctx, productID, options...)
}

func (r MockRepo) SaveBalanceSettings(ctx context.Context, balance inventory.StockBalance, options ...core.UpdateOptions) error {
	r.AddCall(ctx, balance, options)
	return r.SaveBalanceSettingsFunc(ctx, balance, options...)
}

func (r MockRepo) AppendMovements(ctx context.Context, records []inventory.MovementRecord, options ...core.UpdateOptions) error {
	r.AddCall(ctx, records, options)
	return r.AppendMovementsFunc(ctx, records, options...)
}

func (r MockRepo) QueryMovements(ctx context.Context, filter inventory.MovementFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.MovementRecord, int, error) {
	r.AddCall(ctx, filter, limit, offset, options)
	return r.QueryMovementsFunc(ctx, filter, limit, offset, options...)
}

func (r MockRepo) LedgerQuantities(ctx context.Context, productID string, options ...core.QueryOptions) (map[string]int64, error) {
	r.AddCall(ctx, productID, options)
	return r.LedgerQuantitiesFunc(ctx, productID, options...)
}

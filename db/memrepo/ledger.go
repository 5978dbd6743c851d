package memrepo

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

type LedgerRepo struct {
	s *Store
}

func (r *LedgerRepo) BeginTransaction(_ context.Context) (core.Transaction, error) {
	return r.s.begin(), nil
}

// GetBalances sees the transaction's own uncommitted writes when called with one, and remembers what it read so
// Commit can detect settings changed underneath it.
func (r *LedgerRepo) GetBalances(_ context.Context, keys []inventory.BalanceKey, options ...core.QueryOptions) (map[inventory.BalanceKey]inventory.StockBalance, error) {
	var tx *Tx
	if len(options) > 0 {
		tx = txFrom(options[0].Tx)
	}

	r.s.mu.RLock()
	balances := make(map[inventory.BalanceKey]inventory.StockBalance, len(keys))
	for _, k := range keys {
		b, ok := r.s.balances[k]
		if !ok {
			b = inventory.StockBalance{ProductID: k.ProductID, LocationID: k.LocationID}
		}
		balances[k] = b
	}
	r.s.mu.RUnlock()

	if tx != nil {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		if tx.done {
			return nil, errors.WithStack(ErrTxDone)
		}
		for k, b := range balances {
			if _, ok := tx.read[k]; !ok {
				tx.read[k] = b
			}
			if set, ok := tx.settings[k]; ok {
				b.Reserved, b.ReorderPoint, b.MaxStock = set.Reserved, set.ReorderPoint, set.MaxStock
			}
			for _, rec := range tx.records {
				b.Quantity += rec.Deltas()[k]
			}
			balances[k] = b
		}
	}
	return balances, nil
}

func (r *LedgerRepo) GetProductBalances(_ context.Context, productID string, _ ...core.QueryOptions) ([]inventory.StockBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	balances := make([]inventory.StockBalance, 0)
	for k, b := range r.s.balances {
		if k.ProductID == productID {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].LocationID < balances[j].LocationID })
	return balances, nil
}

func (r *LedgerRepo) SaveBalanceSettings(ctx context.Context, balance inventory.StockBalance, options ...core.UpdateOptions) error {
	return r.write(ctx, options, func(tx *Tx) {
		tx.settings[balance.Key()] = balance
	})
}

func (r *LedgerRepo) AppendMovements(ctx context.Context, records []inventory.MovementRecord, options ...core.UpdateOptions) error {
	for _, rec := range records {
		if rec.Quantity <= 0 || (rec.FromLocationID == "" && rec.ToLocationID == "") {
			return errors.Errorf("invalid movement record %s", rec.ID)
		}
	}
	return r.write(ctx, options, func(tx *Tx) {
		tx.records = append(tx.records, records...)
	})
}

// write applies fn to the caller's transaction, or to a transaction of its own that is committed immediately.
func (r *LedgerRepo) write(ctx context.Context, options []core.UpdateOptions, fn func(tx *Tx)) error {
	var tx *Tx
	if len(options) > 0 {
		tx = txFrom(options[0].Tx)
	}
	if tx == nil {
		tx = r.s.begin()
		fn(tx)
		return tx.Commit(ctx)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errors.WithStack(ErrTxDone)
	}
	fn(tx)
	return nil
}

// QueryMovements returns matching movements newest first. Movements created at the same instant keep reverse
// insertion order.
func (r *LedgerRepo) QueryMovements(_ context.Context, filter inventory.MovementFilter, limit, offset int, _ ...core.QueryOptions) ([]inventory.MovementRecord, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]inventory.MovementRecord, 0)
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		if filter.Matches(r.s.movements[i]) {
			matched = append(matched, r.s.movements[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Created.After(matched[j].Created) })

	total := len(matched)
	if offset >= total {
		return []inventory.MovementRecord{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := make([]inventory.MovementRecord, end-offset)
	copy(page, matched[offset:end])
	return page, total, nil
}

func (r *LedgerRepo) LedgerQuantities(_ context.Context, productID string, _ ...core.QueryOptions) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	quantities := make(map[string]int64)
	for _, rec := range r.s.movements {
		if rec.ProductID != productID {
			continue
		}
		for k, delta := range rec.Deltas() {
			quantities[k.LocationID] += delta
		}
	}
	return quantities, nil
}

// Package memrepo keeps every repository in process memory. It backs the service when no database is configured
// and gives tests the same transactional guarantees the postgres repositories have. Writes made through a
// transaction are invisible until Commit. Commit refuses to leave any balance negative and refuses to overwrite
// balance settings that another transaction changed after this one read them.
package memrepo

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/core/user"
)

var ErrTxDone = errors.New("memrepo: transaction has already been committed or rolled back")

var (
	_ inventory.Repository = (*LedgerRepo)(nil)
	_ location.Repository  = (*LocationRepo)(nil)
	_ user.Repository      = (*UserRepo)(nil)
)

type Store struct {
	mu        sync.RWMutex
	balances  map[inventory.BalanceKey]inventory.StockBalance
	movements []inventory.MovementRecord
	locations map[string]location.Location
	users     map[string]user.User
}

func New() *Store {
	return &Store{
		balances:  make(map[inventory.BalanceKey]inventory.StockBalance),
		movements: make([]inventory.MovementRecord, 0, 128),
		locations: make(map[string]location.Location),
		users:     make(map[string]user.User),
	}
}

func (s *Store) Ledger() *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (s *Store) Locations() *LocationRepo {
	return &LocationRepo{s: s}
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{s: s}
}

// Tx buffers ledger writes until Commit. read holds the committed balance each key had when the transaction
// first read it.
type Tx struct {
	s        *Store
	mu       sync.Mutex
	done     bool
	records  []inventory.MovementRecord
	settings map[inventory.BalanceKey]inventory.StockBalance
	read     map[inventory.BalanceKey]inventory.StockBalance
}

func (s *Store) begin() *Tx {
	return &Tx{
		s:        s,
		settings: make(map[inventory.BalanceKey]inventory.StockBalance),
		read:     make(map[inventory.BalanceKey]inventory.StockBalance),
	}
}

func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	next := make(map[inventory.BalanceKey]inventory.StockBalance)
	get := func(k inventory.BalanceKey) inventory.StockBalance {
		if b, ok := next[k]; ok {
			return b
		}
		if b, ok := t.s.balances[k]; ok {
			return b
		}
		return inventory.StockBalance{ProductID: k.ProductID, LocationID: k.LocationID}
	}

	for k, set := range t.settings {
		b := get(k)
		if seen, ok := t.read[k]; ok && !sameSettings(seen, b) {
			return errors.WithMessagef(core.ErrConflict, "balance %s was changed by another transaction", k)
		}
		b.Reserved, b.ReorderPoint, b.MaxStock, b.Updated = set.Reserved, set.ReorderPoint, set.MaxStock, set.Updated
		next[k] = b
	}
	for _, r := range t.records {
		for k, delta := range r.Deltas() {
			b := get(k)
			b.Quantity += delta
			b.Updated = r.Created
			next[k] = b
		}
	}

	for k, b := range next {
		if b.Quantity < 0 || b.Reserved < 0 || b.Reserved > b.Quantity {
			return errors.WithMessagef(core.ErrConflict, "balance %s would become quantity=%d reserved=%d", k, b.Quantity, b.Reserved)
		}
	}

	for k, b := range next {
		t.s.balances[k] = b
	}
	t.s.movements = append(t.s.movements, t.records...)
	return nil
}

// Rollback discards buffered writes. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.records = nil
	t.settings = nil
	t.read = nil
	return nil
}

func sameSettings(a, b inventory.StockBalance) bool {
	return a.Reserved == b.Reserved && a.ReorderPoint == b.ReorderPoint && a.MaxStock == b.MaxStock
}

func txFrom(tx core.Transaction) *Tx {
	if t, ok := tx.(*Tx); ok {
		return t
	}
	return nil
}

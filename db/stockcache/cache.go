// Package stockcache is a read-through cache of per-product balances in front of the ledger repository.
package stockcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stock_ledger_balance_cache_lookups",
		Help: "Balance cache lookups by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(cacheLookups)
}

// Cache must be invalidated by every writer of the balances it caches. A load that started before an
// invalidation is never stored, so a slow read cannot put stale balances back.
type Cache struct {
	next inventory.BalanceReader
	lru  *lru.Cache

	mu         sync.Mutex
	generation uint64
}

func New(next inventory.BalanceReader, size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Cache{next: next, lru: l}, nil
}

// GetProductBalances bypasses the cache inside a transaction.
func (c *Cache) GetProductBalances(ctx context.Context, productID string, options ...core.QueryOptions) ([]inventory.StockBalance, error) {
	if len(options) > 0 && options[0].Tx != nil {
		return c.next.GetProductBalances(ctx, productID, options...)
	}

	if v, ok := c.lru.Get(productID); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return clone(v.([]inventory.StockBalance)), nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	balances, err := c.next.GetProductBalances(ctx, productID, options...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.lru.Add(productID, clone(balances))
	}
	c.mu.Unlock()

	return balances, nil
}

func (c *Cache) Invalidate(productIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, p := range productIDs {
		c.lru.Remove(p)
	}
}

func clone(b []inventory.StockBalance) []inventory.StockBalance {
	out := make([]inventory.StockBalance, len(b))
	copy(out, b)
	return out
}

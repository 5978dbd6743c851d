package invrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/db"
)

type dbRepo struct {
	conn db.Conn
}

func NewPostgresRepo(conn db.Conn) inventory.Repository {
	return &dbRepo{
		conn: conn,
	}
}

func (d *dbRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return nil, db.MapError(err)
	}
	return tx, nil
}

// GetBalances makes sure a row exists for every key before locking, so that two first-time writers to the same
// balance still serialize on it.
func (d *dbRepo) GetBalances(ctx context.Context, keys []inventory.BalanceKey, options ...core.QueryOptions) (map[inventory.BalanceKey]inventory.StockBalance, error) {
	m := db.StartMetric("GetBalances")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	balances := make(map[inventory.BalanceKey]inventory.StockBalance, len(keys))
	if len(keys) == 0 {
		m.Complete(nil)
		return balances, nil
	}

	products := make([]string, len(keys))
	locations := make([]string, len(keys))
	for i, k := range keys {
		products[i], locations[i] = k.ProductID, k.LocationID
		balances[k] = inventory.StockBalance{ProductID: k.ProductID, LocationID: k.LocationID}
	}

	if forUpdate != "" {
		_, err := tx.Exec(ctx, `
			INSERT INTO stock_balances (product_id, location_id)
			SELECT * FROM UNNEST($1::varchar[], $2::varchar[])
			ON CONFLICT DO NOTHING;`, products, locations)
		if err != nil {
			m.Complete(err)
			return nil, db.MapError(err)
		}
	}

	lockClause := ""
	if forUpdate != "" {
		lockClause = forUpdate + " OF b"
	}

	rows, err := tx.Query(ctx, `
		SELECT b.product_id, b.location_id, b.quantity, b.reserved, b.reorder_point, b.max_stock, b.updated_at
		  FROM stock_balances b
		  JOIN UNNEST($1::varchar[], $2::varchar[]) AS k(product_id, location_id)
		    ON b.product_id = k.product_id AND b.location_id = k.location_id
		 ORDER BY b.product_id, b.location_id `+lockClause, products, locations)
	if err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			m.Complete(err)
			return nil, err
		}
		balances[b.Key()] = b
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}

	m.Complete(nil)
	return balances, nil
}

func (d *dbRepo) GetProductBalances(ctx context.Context, productID string, options ...core.QueryOptions) ([]inventory.StockBalance, error) {
	m := db.StartMetric("GetProductBalances")
	tx, forUpdate := db.GetQueryOptions(d.conn, options...)

	rows, err := tx.Query(ctx, `
		SELECT product_id, location_id, quantity, reserved, reorder_point, max_stock, updated_at
		  FROM stock_balances
		 WHERE product_id = $1
		 ORDER BY location_id `+forUpdate, productID)
	if err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}
	defer rows.Close()

	balances := make([]inventory.StockBalance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			m.Complete(err)
			return nil, err
		}
		balances = append(balances, b)
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}

	m.Complete(nil)
	return balances, nil
}

func (d *dbRepo) SaveBalanceSettings(ctx context.Context, b inventory.StockBalance, options ...core.UpdateOptions) error {
	m := db.StartMetric("SaveBalanceSettings")
	tx := db.GetUpdateOptions(d.conn, options...)

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_balances (product_id, location_id, reserved, reorder_point, max_stock, updated_at)
		                    VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, location_id) DO UPDATE
		        SET reserved = EXCLUDED.reserved,
		            reorder_point = EXCLUDED.reorder_point,
		            max_stock = EXCLUDED.max_stock,
		            updated_at = EXCLUDED.updated_at;`,
		b.ProductID, b.LocationID, b.Reserved, b.ReorderPoint, b.MaxStock, b.Updated)
	if err != nil {
		m.Complete(err)
		return db.MapError(err)
	}

	m.Complete(nil)
	return nil
}

// AppendMovements inserts the records and applies their deltas. A delta that would take a balance below zero or
// below its reservation trips the table's check constraint and surfaces as core.ErrConflict.
func (d *dbRepo) AppendMovements(ctx context.Context, records []inventory.MovementRecord, options ...core.UpdateOptions) error {
	m := db.StartMetric("AppendMovements")
	tx := db.GetUpdateOptions(d.conn, options...)

	batch := &pgx.Batch{}
	deltas := make(map[inventory.BalanceKey]int64)
	for _, r := range records {
		batch.Queue(`
			INSERT INTO movements (id, business_id, batch_id, product_id, from_location_id, to_location_id,
			                       external_label, quantity, kind, reason, reference_id, actor_id, created_at)
			               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`,
			r.ID, r.BusinessID, r.BatchID, r.ProductID, nullable(r.FromLocationID), nullable(r.ToLocationID),
			r.ExternalLabel, r.Quantity, string(r.Kind), r.Reason, r.ReferenceID, r.ActorID, r.Created)
		for k, delta := range r.Deltas() {
			deltas[k] += delta
		}
	}

	updated := time.Now()
	for k, delta := range deltas {
		batch.Queue(`
			INSERT INTO stock_balances (product_id, location_id, quantity, updated_at)
			                    VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, location_id) DO UPDATE
			        SET quantity = stock_balances.quantity + EXCLUDED.quantity,
			            updated_at = EXCLUDED.updated_at;`,
			k.ProductID, k.LocationID, delta, updated)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			m.Complete(err)
			return db.MapError(err)
		}
	}
	if err := br.Close(); err != nil {
		m.Complete(err)
		return db.MapError(err)
	}

	m.Complete(nil)
	return nil
}

func (d *dbRepo) QueryMovements(ctx context.Context, filter inventory.MovementFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.MovementRecord, int, error) {
	m := db.StartMetric("QueryMovements")
	tx, _ := db.GetQueryOptions(d.conn, options...)

	where, args := movementWhere(filter)

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM movements `+where, args...).Scan(&total); err != nil {
		m.Complete(err)
		return nil, 0, db.MapError(err)
	}

	args = append(args, limit, offset)
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, business_id, batch_id, product_id, COALESCE(from_location_id, ''), COALESCE(to_location_id, ''),
		       external_label, quantity, kind, reason, reference_id, actor_id, created_at
		  FROM movements %s
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		m.Complete(err)
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	records := make([]inventory.MovementRecord, 0)
	for rows.Next() {
		r := inventory.MovementRecord{}
		var kind string
		if err = rows.Scan(&r.ID, &r.BusinessID, &r.BatchID, &r.ProductID, &r.FromLocationID, &r.ToLocationID,
			&r.ExternalLabel, &r.Quantity, &kind, &r.Reason, &r.ReferenceID, &r.ActorID, &r.Created); err != nil {
			m.Complete(err)
			return nil, 0, errors.WithStack(err)
		}
		r.Kind = inventory.MovementKind(kind)
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, 0, db.MapError(err)
	}

	m.Complete(nil)
	return records, total, nil
}

func (d *dbRepo) LedgerQuantities(ctx context.Context, productID string, options ...core.QueryOptions) (map[string]int64, error) {
	m := db.StartMetric("LedgerQuantities")
	tx, _ := db.GetQueryOptions(d.conn, options...)

	rows, err := tx.Query(ctx, `
		SELECT location_id, SUM(delta) FROM (
		    SELECT to_location_id AS location_id, quantity AS delta
		      FROM movements WHERE product_id = $1 AND to_location_id IS NOT NULL
		    UNION ALL
		    SELECT from_location_id, -quantity
		      FROM movements WHERE product_id = $1 AND from_location_id IS NOT NULL
		) d
		GROUP BY location_id`, productID)
	if err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}
	defer rows.Close()

	quantities := make(map[string]int64)
	for rows.Next() {
		var (
			locationID string
			quantity   int64
		)
		if err = rows.Scan(&locationID, &quantity); err != nil {
			m.Complete(err)
			return nil, errors.WithStack(err)
		}
		quantities[locationID] = quantity
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}

	m.Complete(nil)
	return quantities, nil
}

func movementWhere(f inventory.MovementFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.BusinessID != "" {
		add("business_id = $%d", f.BusinessID)
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.LocationID != "" {
		args = append(args, f.LocationID)
		clauses = append(clauses, fmt.Sprintf("(from_location_id = $%d OR to_location_id = $%d)", len(args), len(args)))
	}
	if f.Kind != inventory.NoKind {
		add("kind = $%d", string(f.Kind))
	}
	if f.ReferenceID != "" {
		add("reference_id = $%d", f.ReferenceID)
	}
	if !f.DateFrom.IsZero() {
		add("created_at >= $%d", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		add("created_at < $%d", f.DateTo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanBalance(row pgx.Row) (inventory.StockBalance, error) {
	b := inventory.StockBalance{}
	if err := row.Scan(&b.ProductID, &b.LocationID, &b.Quantity, &b.Reserved, &b.ReorderPoint, &b.MaxStock, &b.Updated); err != nil {
		return b, errors.WithStack(err)
	}
	return b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package locrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/db"

	lru "github.com/hashicorp/golang-lru"
)

type dbRepo struct {
	conn db.Conn
	c    *lru.Cache
}

// NewPostgresRepo caches locations by id. Locations are looked up on every transfer and movement query but
// change rarely.
func NewPostgresRepo(conn db.Conn) location.Repository {
	l, err := lru.New(512)
	if err != nil {
		log.Warn().Err(err).Msg("unable to configure cache")
	}
	return &dbRepo{
		conn: conn,
		c:    l,
	}
}

func (r *dbRepo) GetLocation(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error) {
	if len(options) == 0 {
		if loc, ok := r.getcache(id); ok {
			return loc, nil
		}
	}

	m := db.StartMetric("GetLocation")
	tx, forUpdate := db.GetQueryOptions(r.conn, options...)

	loc := location.Location{}
	err := tx.QueryRow(ctx, `
		SELECT id, business_id, name, local_name, kind, active, created_at
		  FROM locations
		 WHERE id = $1 `+forUpdate, id).
		Scan(&loc.ID, &loc.BusinessID, &loc.Name, &loc.LocalName, &loc.Kind, &loc.Active, &loc.Created)
	if err != nil {
		m.Complete(err)
		return location.Location{}, db.MapError(err)
	}

	r.cache(loc)
	m.Complete(nil)
	return loc, nil
}

func (r *dbRepo) GetActiveLocations(ctx context.Context, businessID string, options ...core.QueryOptions) ([]location.Location, error) {
	m := db.StartMetric("GetActiveLocations")
	tx, forUpdate := db.GetQueryOptions(r.conn, options...)

	rows, err := tx.Query(ctx, `
		SELECT id, business_id, name, local_name, kind, active, created_at
		  FROM locations
		 WHERE business_id = $1 AND active
		 ORDER BY created_at, id `+forUpdate, businessID)
	if err != nil {
		m.Complete(err)
		return nil, db.MapError(err)
	}
	defer rows.Close()

	locations := make([]location.Location, 0)
	for rows.Next() {
		loc := location.Location{}
		if err = rows.Scan(&loc.ID, &loc.BusinessID, &loc.Name, &loc.LocalName, &loc.Kind, &loc.Active, &loc.Created); err != nil {
			m.Complete(err)
			return nil, errors.WithStack(err)
		}
		locations = append(locations, loc)
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, errors.WithStack(err)
	}

	m.Complete(nil)
	return locations, nil
}

func (r *dbRepo) SaveLocation(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error {
	m := db.StartMetric("SaveLocation")
	tx := db.GetUpdateOptions(r.conn, options...)

	_, err := tx.Exec(ctx, `
		INSERT INTO locations (id, business_id, name, local_name, kind, active, created_at)
		                VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		        SET name = EXCLUDED.name, local_name = EXCLUDED.local_name, kind = EXCLUDED.kind, active = EXCLUDED.active;`,
		loc.ID, loc.BusinessID, loc.Name, loc.LocalName, loc.Kind, loc.Active, loc.Created)
	if err != nil {
		m.Complete(err)
		return db.MapError(err)
	}

	r.uncache(loc.ID)
	m.Complete(nil)
	return nil
}

func (r *dbRepo) cache(loc location.Location) {
	if r.c == nil {
		return
	}
	r.c.Add(loc.ID, loc)
}

func (r *dbRepo) uncache(id string) {
	if r.c == nil {
		return
	}
	r.c.Remove(id)
}

func (r *dbRepo) getcache(id string) (location.Location, bool) {
	if r.c == nil {
		return location.Location{}, false
	}

	v, ok := r.c.Get(id)
	if !ok {
		return location.Location{}, false
	}
	loc, ok := v.(location.Location)
	return loc, ok
}

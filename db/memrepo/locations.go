package memrepo

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
)

type LocationRepo struct {
	s *Store
}

func (r *LocationRepo) GetLocation(_ context.Context, id string, _ ...core.QueryOptions) (location.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	loc, ok := r.s.locations[id]
	if !ok {
		return location.Location{}, errors.WithStack(core.ErrNotFound)
	}
	return loc, nil
}

func (r *LocationRepo) GetActiveLocations(_ context.Context, businessID string, _ ...core.QueryOptions) ([]location.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	locations := make([]location.Location, 0)
	for _, loc := range r.s.locations {
		if loc.BusinessID == businessID && loc.Active {
			locations = append(locations, loc)
		}
	}
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Created.Equal(locations[j].Created) {
			return locations[i].ID < locations[j].ID
		}
		return locations[i].Created.Before(locations[j].Created)
	})
	return locations, nil
}

func (r *LocationRepo) SaveLocation(_ context.Context, loc location.Location, _ ...core.UpdateOptions) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.locations[loc.ID]; ok && existing.BusinessID != loc.BusinessID {
		return errors.WithMessagef(core.ErrConflict, "location %s belongs to another business", loc.ID)
	}
	r.s.locations[loc.ID] = loc
	return nil
}

package memrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/user"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(_ context.Context, u *user.User, _ ...core.UpdateOptions) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[u.Username]; ok {
		return errors.WithMessagef(core.ErrConflict, "user %s already exists", u.Username)
	}
	r.s.users[u.Username] = *u
	return nil
}

func (r *UserRepo) Get(_ context.Context, username string, _ ...core.QueryOptions) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[username]
	if !ok {
		return user.User{}, errors.WithStack(core.ErrNotFound)
	}
	return u, nil
}

func (r *UserRepo) Delete(_ context.Context, username string, _ ...core.UpdateOptions) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[username]; !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	delete(r.s.users, username)
	return nil
}

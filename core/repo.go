package core

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("core: record not found")

	// ErrConflict is returned by a repository when a write could not be applied
	// because of a concurrent change (serialization failure, deadlock or a
	// balance that would go negative at commit time).
	ErrConflict = errors.New("core: conflicting concurrent write")
)

type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UpdateOptions struct {
	Tx Transaction
}

type QueryOptions struct {
	ForUpdate bool
	Tx        Transaction
}

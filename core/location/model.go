// Package location is the registry of places stock can reside for a business: stores, warehouses and the like.
// Locations are never deleted because historical movements reference them, they are deactivated instead.
package location

import (
	"time"

	"github.com/pkg/errors"
)

type Kind string

const (
	PrimaryStore Kind = "primary_store"
	RetailStore  Kind = "retail_store"
	Warehouse    Kind = "warehouse"
	Virtual      Kind = "virtual"
)

func ParseKind(v string) (Kind, error) {
	switch Kind(v) {
	case PrimaryStore, RetailStore, Warehouse, Virtual:
		return Kind(v), nil
	default:
		return "", errors.Errorf("invalid location kind %q", v)
	}
}

// Location is an entity. A physical or logical stock point.
type Location struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"businessId"`
	Name       string    `json:"name"`
	LocalName  string    `json:"localName,omitempty"`
	Kind       Kind      `json:"kind"`
	Active     bool      `json:"active"`
	Created    time.Time `json:"created"`
}

// DisplayName prefers the localized name when one was provided.
func (l Location) DisplayName() string {
	if l.LocalName != "" {
		return l.LocalName
	}
	return l.Name
}

type CreateLocationRequest struct {
	BusinessID string `json:"businessId"`
	Name       string `json:"name"`
	LocalName  string `json:"localName"`
	Kind       Kind   `json:"kind"`
}

// Package inventory tracks per-location stock for products as an append-only ledger of movements. Every quantity
// change is a MovementRecord; current balances are a materialized view of that ledger that is only ever changed in
// the same transaction as the records that explain it.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type MovementKind string

const (
	Transfer     MovementKind = "transfer"
	Sale         MovementKind = "sale"
	Adjustment   MovementKind = "adjustment"
	InitialStock MovementKind = "initial_stock"
	NoKind       MovementKind = ""
)

func ParseMovementKind(v string) (MovementKind, error) {
	switch MovementKind(v) {
	case Transfer, Sale, Adjustment, InitialStock, NoKind:
		return MovementKind(v), nil
	default:
		return NoKind, errors.Errorf("invalid movement kind %q", v)
	}
}

// MovementRecord is an immutable ledger entry. An empty FromLocationID means the quantity came from outside the
// system, an empty ToLocationID means it left the system. Never both.
type MovementRecord struct {
	ID             string       `json:"id"`
	BusinessID     string       `json:"businessId"`
	BatchID        string       `json:"batchId"`
	ProductID      string       `json:"productId"`
	FromLocationID string       `json:"fromLocationId,omitempty"`
	ToLocationID   string       `json:"toLocationId,omitempty"`
	ExternalLabel  string       `json:"externalLabel,omitempty"`
	Quantity       int64        `json:"quantity"`
	Kind           MovementKind `json:"kind"`
	Reason         string       `json:"reason,omitempty"`
	ReferenceID    string       `json:"referenceId,omitempty"`
	ActorID        string       `json:"actorId,omitempty"`
	Created        time.Time    `json:"created"`
}

// Deltas returns the balance changes the record implies, one per tracked endpoint.
func (m MovementRecord) Deltas() map[BalanceKey]int64 {
	d := make(map[BalanceKey]int64, 2)
	if m.FromLocationID != "" {
		d[BalanceKey{ProductID: m.ProductID, LocationID: m.FromLocationID}] -= m.Quantity
	}
	if m.ToLocationID != "" {
		d[BalanceKey{ProductID: m.ProductID, LocationID: m.ToLocationID}] += m.Quantity
	}
	return d
}

type BalanceKey struct {
	ProductID  string
	LocationID string
}

func (k BalanceKey) String() string {
	return k.ProductID + "@" + k.LocationID
}

// StockBalance is the materialized on-hand quantity of a product at a location.
type StockBalance struct {
	ProductID    string    `json:"productId"`
	LocationID   string    `json:"locationId"`
	Quantity     int64     `json:"quantity"`
	Reserved     int64     `json:"reserved"`
	ReorderPoint int64     `json:"reorderPoint"`
	MaxStock     int64     `json:"maxStock"`
	Updated      time.Time `json:"updated"`
}

func (b StockBalance) Key() BalanceKey {
	return BalanceKey{ProductID: b.ProductID, LocationID: b.LocationID}
}

func (b StockBalance) Available() int64 {
	return b.Quantity - b.Reserved
}

// Destination is where a transfer sends its quantity: either a tracked location or somewhere outside the system.
type Destination interface {
	isDestination()
}

type Internal struct {
	LocationID string
}

type External struct {
	Label string
}

func (Internal) isDestination() {}
func (External) isDestination() {}

type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
}

// TransferRequest is a value object. The intent to move one or more products from a source to a destination.
type TransferRequest struct {
	BusinessID       string
	Kind             MovementKind
	SourceLocationID string
	Destination      Destination
	Lines            []LineItem
	Reason           string
	ReferenceID      string
	ActorID          string
}

func (r TransferRequest) kind() MovementKind {
	if r.Kind == NoKind {
		return Transfer
	}
	return r.Kind
}

type TransferResult struct {
	BatchID       string           `json:"batchId"`
	ItemCount     int              `json:"itemCount"`
	TotalQuantity int64            `json:"totalQuantity"`
	Movements     []MovementRecord `json:"-"`
}

type ReservationRequest struct {
	BusinessID string `json:"businessId"`
	ProductID  string `json:"productId"`
	LocationID string `json:"locationId"`
	Quantity   int64  `json:"quantity"`
	ActorID    string `json:"actorId"`
}

type ThresholdRequest struct {
	BusinessID   string `json:"businessId"`
	ProductID    string `json:"productId"`
	LocationID   string `json:"locationId"`
	ReorderPoint int64  `json:"reorderPoint"`
	MaxStock     int64  `json:"maxStock"`
}

type StockStatus string

const (
	InStock             StockStatus = "in_stock"
	LowStock            StockStatus = "low_stock"
	OutOfStock          StockStatus = "out_of_stock"
	NotAvailableForSale StockStatus = "not_available_for_sale"
)

// Classify is the single rule used to badge stock on every read surface.
func Classify(quantity, reserved, reorderPoint int64) StockStatus {
	available := quantity - reserved
	switch {
	case quantity <= 0:
		return OutOfStock
	case available <= 0:
		return NotAvailableForSale
	case reorderPoint > 0 && available <= reorderPoint:
		return LowStock
	default:
		return InStock
	}
}

type LocationStock struct {
	LocationID   string      `json:"locationId"`
	LocationName string      `json:"locationName"`
	Quantity     int64       `json:"quantity"`
	Reserved     int64       `json:"reserved"`
	Available    int64       `json:"available"`
	ReorderPoint int64       `json:"reorderPoint"`
	MaxStock     int64       `json:"maxStock"`
	Status       StockStatus `json:"status"`
}

// ProductStock is the combined view of a product across every active location of a business.
type ProductStock struct {
	ProductID string          `json:"productId"`
	Locations []LocationStock `json:"locations"`
	Total     int64           `json:"total"`
	Reserved  int64           `json:"reserved"`
	Available int64           `json:"available"`
	Status    StockStatus     `json:"status"`
}

// Summary renders the combined stock line, e.g. "Main: 5 | Retail: 3 → Total: 8".
func (p ProductStock) Summary() string {
	parts := make([]string, 0, len(p.Locations))
	for _, l := range p.Locations {
		parts = append(parts, fmt.Sprintf("%s: %d", l.LocationName, l.Quantity))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Total: %d", p.Total)
	}
	return fmt.Sprintf("%s → Total: %d", strings.Join(parts, " | "), p.Total)
}

// Discrepancy reports a materialized balance that no longer matches its ledger.
type Discrepancy struct {
	ProductID    string `json:"productId"`
	LocationID   string `json:"locationId"`
	Materialized int64  `json:"materialized"`
	Ledger       int64  `json:"ledger"`
}

type MovementFilter struct {
	BusinessID  string
	ProductID   string
	LocationID  string
	Kind        MovementKind
	ReferenceID string
	DateFrom    time.Time
	DateTo      time.Time
}

// Matches reports whether a record satisfies the filter. Zero valued fields match anything; DateTo is exclusive.
func (f MovementFilter) Matches(m MovementRecord) bool {
	if f.BusinessID != "" && m.BusinessID != f.BusinessID {
		return false
	}
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.LocationID != "" && m.FromLocationID != f.LocationID && m.ToLocationID != f.LocationID {
		return false
	}
	if f.Kind != NoKind && m.Kind != f.Kind {
		return false
	}
	if f.ReferenceID != "" && m.ReferenceID != f.ReferenceID {
		return false
	}
	if !f.DateFrom.IsZero() && m.Created.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && !m.Created.Before(f.DateTo) {
		return false
	}
	return true
}

type MovementView struct {
	MovementRecord
	FromLabel string `json:"fromLabel"`
	ToLabel   string `json:"toLabel"`
}

type MovementPage struct {
	Movements   []MovementView `json:"movements"`
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	TotalCount  int            `json:"totalCount"`
	TotalPages  int            `json:"totalPages"`
	HasNext     bool           `json:"hasNext"`
	HasPrevious bool           `json:"hasPrevious"`
}

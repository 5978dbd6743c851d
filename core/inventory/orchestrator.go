package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/lock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 20 * time.Millisecond
)

type MovementSubscriptionID string

// Orchestrator is the only writer of the ledger. Every operation either commits completely or leaves storage
// untouched.
type Orchestrator struct {
	repo      Repository
	locations Locations
	locker    Locker
	queue     Queue
	cache     Invalidator
	tracer    trace.Tracer
	now       func() time.Time

	maxAttempts int
	backoff     time.Duration

	subsMu sync.RWMutex
	subs   map[MovementSubscriptionID]chan<- MovementRecord
}

type Option func(*Orchestrator)

func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

func WithQueue(q Queue) Option {
	return func(o *Orchestrator) { o.queue = q }
}

func WithCache(c Invalidator) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRetry bounds how many times a request is attempted when it loses a race with a concurrent writer.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		o.backoff = backoff
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(repo Repository, locations Locations, options ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		locations:   locations,
		locker:      lock.NewLocal(),
		tracer:      otel.Tracer("github.com/sksmith/go-stock-ledger/core/inventory"),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		subs:        make(map[MovementSubscriptionID]chan<- MovementRecord),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Execute validates a transfer request and records it as one batch of movements, one per line item.
func (o *Orchestrator) Execute(ctx context.Context, req TransferRequest) (res TransferResult, err error) {
	const funcName = "Execute"

	kind := req.kind()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "inventory.execute_transfer")
	span.SetAttributes(
		attribute.String("inventory.business_id", req.BusinessID),
		attribute.String("inventory.kind", string(kind)),
		attribute.String("inventory.source", req.SourceLocationID),
		attribute.Int("inventory.lines", len(req.Lines)),
	)
	defer func() {
		observeTransfer(kind, start, res, err)
		endSpan(span, err)
	}()

	log.Info().
		Str("func", funcName).
		Str("businessId", req.BusinessID).
		Str("kind", string(kind)).
		Str("source", req.SourceLocationID).
		Str("referenceId", req.ReferenceID).
		Int("lines", len(req.Lines)).
		Msg("executing transfer")

	if err = validateTransfer(req, kind); err != nil {
		return res, err
	}
	if err = o.resolveEndpoints(ctx, req); err != nil {
		return res, err
	}

	for attempt := 1; ; attempt++ {
		res, err = o.attempt(ctx, req, kind)
		if err == nil || !IsKind(err, ConcurrencyConflict) || attempt >= o.maxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Str("func", funcName).
			Int("attempt", attempt).
			Msg("transfer conflicted with a concurrent write, retrying")
		transferRetries.WithLabelValues(string(kind)).Inc()

		select {
		case <-ctx.Done():
			return res, &TransferError{Kind: ConcurrencyConflict, Message: "gave up retrying", Err: ctx.Err()}
		case <-time.After(o.backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		return TransferResult{}, err
	}

	span.SetAttributes(attribute.String("inventory.batch_id", res.BatchID))
	log.Info().
		Str("func", funcName).
		Str("batchId", res.BatchID).
		Int("itemCount", res.ItemCount).
		Int64("totalQuantity", res.TotalQuantity).
		Msg("transfer committed")

	o.afterCommit(ctx, res.Movements)
	return res, nil
}

func (o *Orchestrator) attempt(ctx context.Context, req TransferRequest, kind MovementKind) (res TransferResult, err error) {
	keys := balanceKeys(req)

	unlock, err := o.locker.Lock(ctx, lockNames(keys)...)
	if err != nil {
		return res, &TransferError{Kind: ConcurrencyConflict, Message: "failed to acquire stock lock", Err: err}
	}
	defer unlock()

	tx, err := o.repo.BeginTransaction(ctx)
	if err != nil {
		return res, storageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, err)
		}
	}()

	balances, err := o.repo.GetBalances(ctx, keys, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		return res, storageError(err, "failed to read balances")
	}

	if req.SourceLocationID != "" {
		if err = checkAvailability(req, balances); err != nil {
			return res, err
		}
	}

	records := o.buildRecords(req, kind)
	if err = o.repo.AppendMovements(ctx, records, core.UpdateOptions{Tx: tx}); err != nil {
		return res, storageError(err, "failed to append movements")
	}

	if err = tx.Commit(ctx); err != nil {
		return res, storageError(err, "failed to commit transfer")
	}

	res = TransferResult{BatchID: records[0].BatchID, ItemCount: len(records), Movements: records}
	for _, r := range records {
		res.TotalQuantity += r.Quantity
	}
	return res, nil
}

func validateTransfer(req TransferRequest, kind MovementKind) error {
	if req.BusinessID == "" {
		return newError(InvalidRequest, "business id is required")
	}
	if _, err := ParseMovementKind(string(kind)); err != nil {
		return newError(InvalidRequest, err.Error())
	}
	if req.Destination == nil {
		return newError(InvalidRequest, "destination is required")
	}

	internal, isInternal := req.Destination.(Internal)
	if isInternal && internal.LocationID == "" {
		return newError(InvalidRequest, "destination location id is required")
	}
	hasSource := req.SourceLocationID != ""

	switch kind {
	case InitialStock:
		if hasSource || !isInternal {
			return newError(InvalidRequest, "initial stock must arrive at a location from outside the system")
		}
	case Sale:
		if !hasSource || isInternal {
			return newError(InvalidRequest, "a sale must leave a location for an external destination")
		}
	case Transfer:
		if !hasSource {
			return newError(InvalidRequest, "source location is required")
		}
	case Adjustment:
		if hasSource == isInternal {
			return newError(InvalidRequest, "an adjustment either adds stock to a location or removes it from one")
		}
	}

	if isInternal && internal.LocationID == req.SourceLocationID {
		return newError(InvalidRequest, "source and destination must be different locations")
	}

	if len(req.Lines) == 0 {
		return newError(InvalidRequest, "at least one line item is required")
	}

	var lines []LineError
	for i, l := range req.Lines {
		switch {
		case l.ProductID == "":
			lines = append(lines, LineError{Index: i, Requested: l.Quantity, Reason: "product id is required"})
		case l.Quantity <= 0:
			lines = append(lines, LineError{Index: i, ProductID: l.ProductID, Requested: l.Quantity, Reason: "quantity must be greater than zero"})
		}
	}
	if len(lines) > 0 {
		return newError(InvalidRequest, "invalid line items", lines...)
	}
	return nil
}

func (o *Orchestrator) resolveEndpoints(ctx context.Context, req TransferRequest) error {
	if req.SourceLocationID != "" {
		if err := o.resolveLocation(ctx, req.BusinessID, req.SourceLocationID, "source"); err != nil {
			return err
		}
	}
	if in, ok := req.Destination.(Internal); ok {
		if err := o.resolveLocation(ctx, req.BusinessID, in.LocationID, "destination"); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) resolveLocation(ctx context.Context, businessID, id, role string) error {
	loc, err := o.locations.GetLocation(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return newError(InvalidRequest, role+" location "+id+" does not exist")
		}
		return &TransferError{Kind: PersistenceFailure, Message: "failed to load " + role + " location", Err: err}
	}
	if loc.BusinessID != businessID {
		return newError(InvalidRequest, role+" location "+id+" does not exist")
	}
	if !loc.Active {
		return newError(LocationInactive, role+" location "+loc.Name+" is inactive")
	}
	return nil
}

// checkAvailability reports every line whose product, summed across the whole request, exceeds what the source
// has available.
func checkAvailability(req TransferRequest, balances map[BalanceKey]StockBalance) error {
	requested := make(map[string]int64, len(req.Lines))
	for _, l := range req.Lines {
		requested[l.ProductID] += l.Quantity
	}

	var lines []LineError
	for i, l := range req.Lines {
		b := balances[BalanceKey{ProductID: l.ProductID, LocationID: req.SourceLocationID}]
		if requested[l.ProductID] > b.Available() {
			lines = append(lines, LineError{
				Index:     i,
				ProductID: l.ProductID,
				Requested: requested[l.ProductID],
				Available: b.Available(),
				Reason:    "insufficient stock at source",
			})
		}
	}
	if len(lines) > 0 {
		return newError(InsufficientStock, "not enough stock at source location", lines...)
	}
	return nil
}

func (o *Orchestrator) buildRecords(req TransferRequest, kind MovementKind) []MovementRecord {
	batchID := uuid.NewString()
	created := o.now()

	var toLocation, label string
	switch d := req.Destination.(type) {
	case Internal:
		toLocation = d.LocationID
	case External:
		label = d.Label
	}

	records := make([]MovementRecord, 0, len(req.Lines))
	for _, l := range req.Lines {
		records = append(records, MovementRecord{
			ID:             uuid.NewString(),
			BusinessID:     req.BusinessID,
			BatchID:        batchID,
			ProductID:      l.ProductID,
			FromLocationID: req.SourceLocationID,
			ToLocationID:   toLocation,
			ExternalLabel:  label,
			Quantity:       l.Quantity,
			Kind:           kind,
			Reason:         reason(req, l, kind),
			ReferenceID:    req.ReferenceID,
			ActorID:        req.ActorID,
			Created:        created,
		})
	}
	return records
}

// reason picks the line's own reason, then the request's, then a default for the kind.
func reason(req TransferRequest, line LineItem, kind MovementKind) string {
	if line.Reason != "" {
		return line.Reason
	}
	if req.Reason != "" {
		return req.Reason
	}
	switch kind {
	case Sale:
		return "sale"
	case InitialStock:
		return "initial stock"
	case Adjustment:
		return "stock adjustment"
	}
	if ext, ok := req.Destination.(External); ok && ext.Label != "" {
		return "transfer to " + ext.Label
	}
	return "stock transfer"
}

func balanceKeys(req TransferRequest) []BalanceKey {
	seen := make(map[BalanceKey]struct{})
	keys := make([]BalanceKey, 0, len(req.Lines)*2)
	add := func(k BalanceKey) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, l := range req.Lines {
		if req.SourceLocationID != "" {
			add(BalanceKey{ProductID: l.ProductID, LocationID: req.SourceLocationID})
		}
		if in, ok := req.Destination.(Internal); ok {
			add(BalanceKey{ProductID: l.ProductID, LocationID: in.LocationID})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func lockNames(keys []BalanceKey) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}

func storageError(err error, msg string) error {
	if errors.Is(err, core.ErrConflict) {
		return &TransferError{Kind: ConcurrencyConflict, Message: msg, Err: err}
	}
	return &TransferError{Kind: PersistenceFailure, Message: msg, Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (o *Orchestrator) afterCommit(ctx context.Context, records []MovementRecord) {
	const funcName = "afterCommit"

	if o.cache != nil {
		products := make([]string, 0, len(records))
		for _, r := range records {
			products = append(products, r.ProductID)
		}
		o.cache.Invalidate(products...)
	}

	if o.queue != nil {
		if err := o.queue.PublishMovements(ctx, records); err != nil {
			log.Error().
				Err(err).
				Str("func", funcName).
				Str("batchId", records[0].BatchID).
				Msg("failed to publish committed movements")
		}
	}

	go o.notifySubscribers(records)
}

// Reserve holds stock at a location so it can no longer be moved or sold.
func (o *Orchestrator) Reserve(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
	return o.changeReservation(ctx, rr, true)
}

// Release returns previously reserved stock to the available pool.
func (o *Orchestrator) Release(ctx context.Context, rr ReservationRequest) (StockBalance, error) {
	return o.changeReservation(ctx, rr, false)
}

func (o *Orchestrator) changeReservation(ctx context.Context, rr ReservationRequest, reserve bool) (StockBalance, error) {
	const funcName = "changeReservation"

	log.Info().
		Str("func", funcName).
		Str("productId", rr.ProductID).
		Str("locationId", rr.LocationID).
		Int64("quantity", rr.Quantity).
		Bool("reserve", reserve).
		Msg("changing reservation")

	if rr.BusinessID == "" || rr.ProductID == "" || rr.LocationID == "" {
		return StockBalance{}, newError(InvalidRequest, "business, product and location are required")
	}
	if rr.Quantity <= 0 {
		return StockBalance{}, newError(InvalidRequest, "quantity must be greater than zero")
	}
	if reserve {
		if err := o.resolveLocation(ctx, rr.BusinessID, rr.LocationID, "reservation"); err != nil {
			return StockBalance{}, err
		}
	}

	key := BalanceKey{ProductID: rr.ProductID, LocationID: rr.LocationID}
	return o.updateBalance(ctx, key, func(b *StockBalance) error {
		if reserve {
			if rr.Quantity > b.Available() {
				return newError(InsufficientStock, "not enough available stock to reserve", LineError{
					ProductID: rr.ProductID,
					Requested: rr.Quantity,
					Available: b.Available(),
					Reason:    "insufficient stock at location",
				})
			}
			b.Reserved += rr.Quantity
			return nil
		}
		if rr.Quantity > b.Reserved {
			return newError(InvalidRequest, "cannot release more than is reserved")
		}
		b.Reserved -= rr.Quantity
		return nil
	})
}

// SetThresholds stores the reorder point and maximum stock used to classify a balance.
func (o *Orchestrator) SetThresholds(ctx context.Context, tr ThresholdRequest) (StockBalance, error) {
	const funcName = "SetThresholds"

	log.Info().
		Str("func", funcName).
		Str("productId", tr.ProductID).
		Str("locationId", tr.LocationID).
		Int64("reorderPoint", tr.ReorderPoint).
		Int64("maxStock", tr.MaxStock).
		Msg("setting stock thresholds")

	if tr.BusinessID == "" || tr.ProductID == "" || tr.LocationID == "" {
		return StockBalance{}, newError(InvalidRequest, "business, product and location are required")
	}
	if tr.ReorderPoint < 0 || tr.MaxStock < 0 {
		return StockBalance{}, newError(InvalidRequest, "thresholds cannot be negative")
	}
	if tr.MaxStock > 0 && tr.MaxStock < tr.ReorderPoint {
		return StockBalance{}, newError(InvalidRequest, "max stock cannot be below the reorder point")
	}
	if err := o.resolveLocation(ctx, tr.BusinessID, tr.LocationID, "threshold"); err != nil {
		return StockBalance{}, err
	}

	key := BalanceKey{ProductID: tr.ProductID, LocationID: tr.LocationID}
	return o.updateBalance(ctx, key, func(b *StockBalance) error {
		b.ReorderPoint = tr.ReorderPoint
		b.MaxStock = tr.MaxStock
		return nil
	})
}

func (o *Orchestrator) updateBalance(ctx context.Context, key BalanceKey, apply func(b *StockBalance) error) (StockBalance, error) {
	var (
		b   StockBalance
		err error
	)
	for attempt := 1; ; attempt++ {
		b, err = o.updateBalanceOnce(ctx, key, apply)
		if err == nil || !IsKind(err, ConcurrencyConflict) || attempt >= o.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return StockBalance{}, &TransferError{Kind: ConcurrencyConflict, Message: "gave up retrying", Err: ctx.Err()}
		case <-time.After(o.backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		return StockBalance{}, err
	}
	if o.cache != nil {
		o.cache.Invalidate(key.ProductID)
	}
	return b, nil
}

func (o *Orchestrator) updateBalanceOnce(ctx context.Context, key BalanceKey, apply func(b *StockBalance) error) (b StockBalance, err error) {
	unlock, err := o.locker.Lock(ctx, key.String())
	if err != nil {
		return b, &TransferError{Kind: ConcurrencyConflict, Message: "failed to acquire stock lock", Err: err}
	}
	defer unlock()

	tx, err := o.repo.BeginTransaction(ctx)
	if err != nil {
		return b, storageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, err)
		}
	}()

	balances, err := o.repo.GetBalances(ctx, []BalanceKey{key}, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		return b, storageError(err, "failed to read balance")
	}

	b = balances[key]
	b.ProductID, b.LocationID = key.ProductID, key.LocationID
	if err = apply(&b); err != nil {
		return StockBalance{}, err
	}
	b.Updated = o.now()

	if err = o.repo.SaveBalanceSettings(ctx, b, core.UpdateOptions{Tx: tx}); err != nil {
		return StockBalance{}, storageError(err, "failed to save balance")
	}
	if err = tx.Commit(ctx); err != nil {
		return StockBalance{}, storageError(err, "failed to commit balance")
	}
	return b, nil
}

// SubscribeMovements registers ch to receive every movement committed from now on. Slow subscribers miss
// movements rather than block writers.
func (o *Orchestrator) SubscribeMovements(ch chan<- MovementRecord) MovementSubscriptionID {
	id := MovementSubscriptionID(uuid.NewString())
	o.subsMu.Lock()
	o.subs[id] = ch
	o.subsMu.Unlock()
	log.Debug().Interface("clientId", id).Msg("subscribing to movements")
	return id
}

func (o *Orchestrator) UnsubscribeMovements(id MovementSubscriptionID) {
	log.Debug().Interface("clientId", id).Msg("unsubscribing from movements")
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	if ch, ok := o.subs[id]; ok {
		close(ch)
		delete(o.subs, id)
	}
}

func (o *Orchestrator) notifySubscribers(records []MovementRecord) {
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for id, ch := range o.subs {
		for _, r := range records {
			select {
			case ch <- r:
			default:
				log.Warn().Interface("clientId", id).Str("movementId", r.ID).Msg("subscriber is not keeping up, dropping movement")
			}
		}
	}
}

package queue

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/streadway/amqp"
)

var deadLetteredSales = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stock_ledger_sales_dead_lettered",
		Help: "Sale messages written to the dead letter exchange by failure kind",
	},
	[]string{"kind", "retryable"},
)

func init() {
	prometheus.MustRegister(deadLetteredSales)
}

func deadLetterKind(kind inventory.ErrorKind) string {
	if kind == "" {
		return "unknown"
	}
	return string(kind)
}

type publishFunc func(ctx context.Context, exchange string, body []byte) error

func bunnyPublisher(bq *bunnyq.BunnyQ) publishFunc {
	return func(ctx context.Context, exchange string, body []byte) error {
		return bq.Publish(ctx, exchange, body)
	}
}

// MovementBatch is the message published for every committed transfer.
type MovementBatch struct {
	BatchID   string                     `json:"batchId"`
	Movements []inventory.MovementRecord `json:"movements"`
}

type movementQueue struct {
	publish  publishFunc
	exchange string
}

func NewMovementQueue(bq *bunnyq.BunnyQ, exchange string) inventory.Queue {
	return &movementQueue{publish: bunnyPublisher(bq), exchange: exchange}
}

func (q *movementQueue) PublishMovements(ctx context.Context, records []inventory.MovementRecord) error {
	if len(records) == 0 {
		return nil
	}
	body, err := json.Marshal(MovementBatch{BatchID: records[0].BatchID, Movements: records})
	if err != nil {
		return errors.WithMessage(err, "failed to serialize movements for queue")
	}
	if err = q.publish(ctx, q.exchange, body); err != nil {
		return errors.WithMessage(err, "failed to send movements to queue")
	}
	return nil
}

// SaleEvent is a sale recorded by another system, such as a point of sale, that must be taken out of stock.
type SaleEvent struct {
	BusinessID  string               `json:"businessId"`
	LocationID  string               `json:"locationId"`
	ReferenceID string               `json:"referenceId"`
	Customer    string               `json:"customer"`
	ActorID     string               `json:"actorId"`
	Lines       []inventory.LineItem `json:"lines"`
}

type TransferHandler interface {
	Execute(ctx context.Context, req inventory.TransferRequest) (inventory.TransferResult, error)
}

type SaleQueue struct {
	queue       *bunnyq.BunnyQ
	publish     publishFunc
	saleQueue   string
	dltExchange string
}

func NewSaleQueue(bq *bunnyq.BunnyQ, saleQueue, dltExchange string) *SaleQueue {
	return &SaleQueue{queue: bq, publish: bunnyPublisher(bq), saleQueue: saleQueue, dltExchange: dltExchange}
}

func (s *SaleQueue) ConsumeSales(ctx context.Context, handler TransferHandler) {
	s.queue.Stream(ctx, s.saleQueue, func(delivery amqp.Delivery) {
		s.handle(ctx, handler, delivery.Body)
	}, bunnyq.StreamOpAutoAck)
}

// handle records a sale. Messages that cannot be parsed or recorded go to the dead letter exchange unchanged.
func (s *SaleQueue) handle(ctx context.Context, handler TransferHandler, body []byte) {
	event := SaleEvent{}
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("error unmarshalling sale, writing to dlt")
		deadLetteredSales.WithLabelValues("malformed", "false").Inc()
		s.sendToDlt(ctx, body)
		return
	}

	res, err := handler.Execute(ctx, inventory.TransferRequest{
		BusinessID:       event.BusinessID,
		Kind:             inventory.Sale,
		SourceLocationID: event.LocationID,
		Destination:      inventory.External{Label: event.Customer},
		Lines:            event.Lines,
		ReferenceID:      event.ReferenceID,
		ActorID:          event.ActorID,
	})
	if err != nil {
		kind := inventory.KindOf(err)
		if kind.Retryable() {
			log.Warn().
				Err(err).
				Str("referenceId", event.ReferenceID).
				Str("kind", string(kind)).
				Bool("retryable", true).
				Msg("sale hit a transient conflict, writing to dlt for replay")
		} else {
			log.Error().
				Err(err).
				Str("referenceId", event.ReferenceID).
				Str("kind", string(kind)).
				Bool("retryable", false).
				Msg("error recording sale, writing to dlt")
		}
		deadLetteredSales.WithLabelValues(deadLetterKind(kind), strconv.FormatBool(kind.Retryable())).Inc()
		s.sendToDlt(ctx, body)
		return
	}

	log.Info().
		Str("referenceId", event.ReferenceID).
		Str("batchId", res.BatchID).
		Msg("sale recorded")
}

func (s *SaleQueue) sendToDlt(ctx context.Context, data []byte) {
	if err := s.publish(ctx, s.dltExchange, data); err != nil {
		log.Error().Err(err).Msg("error writing to dlt")
	}
}

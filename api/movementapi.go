package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

type MovementApi struct {
	service   inventory.MovementService
	transfers inventory.TransferService
}

func NewMovementApi(service inventory.MovementService, transfers inventory.TransferService) *MovementApi {
	return &MovementApi{service: service, transfers: transfers}
}

func (a *MovementApi) ConfigureRouter(r chi.Router) {
	r.HandleFunc("/subscribe", a.Subscribe)
	r.With(Paginate).Get("/", a.List)
}

type MovementPageResponse struct {
	inventory.MovementPage
}

func (m *MovementPageResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

// List answers the movement history query. Filters: productId, locationId, kind, referenceId, dateFrom and
// dateTo, the dates as RFC 3339 timestamps or plain 2006-01-02 days.
func (a *MovementApi) List(w http.ResponseWriter, r *http.Request) {
	page := r.Context().Value(CtxKeyPage).(int)
	pageSize := r.Context().Value(CtxKeyPageSize).(int)

	filter, err := movementFilter(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	res, err := a.service.Query(r.Context(), currentUser(r).BusinessID, filter, page, pageSize)
	if err != nil {
		Render(w, r, ErrTransfer(err))
		return
	}

	Render(w, r, &MovementPageResponse{MovementPage: res})
}

func movementFilter(r *http.Request) (inventory.MovementFilter, error) {
	q := r.URL.Query()
	filter := inventory.MovementFilter{
		ProductID:   q.Get("productId"),
		LocationID:  q.Get("locationId"),
		ReferenceID: q.Get("referenceId"),
	}

	kind, err := inventory.ParseMovementKind(q.Get("kind"))
	if err != nil {
		return filter, err
	}
	filter.Kind = kind

	if filter.DateFrom, err = parseDate(q.Get("dateFrom")); err != nil {
		return filter, errors.WithMessage(err, "invalid dateFrom")
	}
	if filter.DateTo, err = parseDate(q.Get("dateTo")); err != nil {
		return filter, errors.WithMessage(err, "invalid dateTo")
	}
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, errors.Errorf("%q is not a date", v)
	}
	return t, nil
}

// Subscribe streams movements committed by this instance for the caller's business over a websocket.
//
// Note: if the service is scaled out, clients only see movements committed by the instance they are connected to.
// Consumers that need everything should bind to the movement exchange instead.
func (a *MovementApi) Subscribe(w http.ResponseWriter, r *http.Request) {
	businessID := currentUser(r).BusinessID
	log.Info().Str("businessId", businessID).Msg("client requesting subscription")

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Err(err).Msg("failed to establish movement subscription connection")
		return
	}

	go func() {
		defer conn.Close()

		ch := make(chan inventory.MovementRecord, 16)
		id := a.transfers.SubscribeMovements(ch)
		defer a.transfers.UnsubscribeMovements(id)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				log.Debug().Interface("clientId", id).Msg("client disconnected")
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				if m.BusinessID != businessID {
					continue
				}
				body, err := json.Marshal(m)
				if err != nil {
					log.Err(err).Interface("clientId", id).Msg("failed to marshal movement")
					continue
				}

				log.Debug().Interface("clientId", id).Str("movementId", m.ID).Msg("sending movement to client")
				if err = wsutil.WriteServerText(conn, body); err != nil {
					log.Err(err).Interface("clientId", id).Msg("failed to write server message, disconnecting client")
					return
				}
			}
		}
	}()
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

const CtxKeyProductID CtxKey = "productId"

type StockApi struct {
	service   inventory.StockService
	transfers inventory.TransferService
}

func NewStockApi(service inventory.StockService, transfers inventory.TransferService) *StockApi {
	return &StockApi{service: service, transfers: transfers}
}

func (a *StockApi) ConfigureRouter(r chi.Router) {
	r.Get("/", a.List)

	r.Route("/{productId}", func(r chi.Router) {
		r.Use(a.ProductCtx)
		r.Get("/", a.Get)
		r.With(AdminOnly).Get("/reconcile", a.Reconcile)

		r.Route("/locations/{locationId}", func(r chi.Router) {
			r.With(AdminOnly).Put("/thresholds", a.SetThresholds)
			r.Post("/reserve", a.Reserve)
			r.Post("/release", a.Release)
		})
	})
}

type ProductStockResponse struct {
	inventory.ProductStock
	Summary string `json:"summary"`
}

func NewProductStockResponse(ps inventory.ProductStock) *ProductStockResponse {
	return &ProductStockResponse{ProductStock: ps, Summary: ps.Summary()}
}

func (p *ProductStockResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewProductStockListResponse(stock []inventory.ProductStock) []render.Renderer {
	list := make([]render.Renderer, 0, len(stock))
	for _, ps := range stock {
		list = append(list, NewProductStockResponse(ps))
	}
	return list
}

type BalanceResponse struct {
	inventory.StockBalance
	Available int64 `json:"available"`
}

func (b *BalanceResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	b.Available = b.StockBalance.Available()
	return nil
}

type ReconcileResponse struct {
	ProductID     string                  `json:"productId"`
	Consistent    bool                    `json:"consistent"`
	Discrepancies []inventory.Discrepancy `json:"discrepancies"`
}

func (rr *ReconcileResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type ReservationDto struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

func (d *ReservationDto) Bind(_ *http.Request) error {
	return validate.Struct(d)
}

type ThresholdDto struct {
	ReorderPoint int64 `json:"reorderPoint" validate:"gte=0"`
	MaxStock     int64 `json:"maxStock" validate:"gte=0"`
}

func (d *ThresholdDto) Bind(_ *http.Request) error {
	return validate.Struct(d)
}

// List returns the combined stock of every productId query parameter.
func (a *StockApi) List(w http.ResponseWriter, r *http.Request) {
	productIDs := r.URL.Query()["productId"]
	if len(productIDs) == 0 {
		Render(w, r, ErrInvalidRequest(errors.New("at least one productId is required")))
		return
	}

	stock, err := a.service.ProductStock(r.Context(), currentUser(r).BusinessID, productIDs...)
	if err != nil {
		log.Err(err).Send()
		Render(w, r, ErrInternalServer)
		return
	}

	RenderList(w, r, NewProductStockListResponse(stock))
}

func (a *StockApi) ProductCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		if productID == "" {
			Render(w, r, ErrInvalidRequest(errors.New("productId is required")))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyProductID, productID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *StockApi) Get(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(string)

	stock, err := a.service.ProductStock(r.Context(), currentUser(r).BusinessID, productID)
	if err != nil {
		log.Err(err).Str("productId", productID).Send()
		Render(w, r, ErrInternalServer)
		return
	}
	if len(stock) == 0 {
		Render(w, r, ErrNotFound)
		return
	}

	Render(w, r, NewProductStockResponse(stock[0]))
}

func (a *StockApi) Reconcile(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(string)

	discrepancies, err := a.service.Reconcile(r.Context(), productID)
	if err != nil {
		log.Err(err).Str("productId", productID).Send()
		Render(w, r, ErrInternalServer)
		return
	}
	if discrepancies == nil {
		discrepancies = []inventory.Discrepancy{}
	}

	Render(w, r, &ReconcileResponse{ProductID: productID, Consistent: len(discrepancies) == 0, Discrepancies: discrepancies})
}

func (a *StockApi) SetThresholds(w http.ResponseWriter, r *http.Request) {
	data := &ThresholdDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	b, err := a.transfers.SetThresholds(r.Context(), inventory.ThresholdRequest{
		BusinessID:   currentUser(r).BusinessID,
		ProductID:    r.Context().Value(CtxKeyProductID).(string),
		LocationID:   chi.URLParam(r, "locationId"),
		ReorderPoint: data.ReorderPoint,
		MaxStock:     data.MaxStock,
	})
	if err != nil {
		Render(w, r, ErrTransfer(err))
		return
	}

	Render(w, r, &BalanceResponse{StockBalance: b})
}

func (a *StockApi) Reserve(w http.ResponseWriter, r *http.Request) {
	a.changeReservation(w, r, a.transfers.Reserve)
}

func (a *StockApi) Release(w http.ResponseWriter, r *http.Request) {
	a.changeReservation(w, r, a.transfers.Release)
}

func (a *StockApi) changeReservation(w http.ResponseWriter, r *http.Request, change func(context.Context, inventory.ReservationRequest) (inventory.StockBalance, error)) {
	data := &ReservationDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	usr := currentUser(r)
	b, err := change(r.Context(), inventory.ReservationRequest{
		BusinessID: usr.BusinessID,
		ProductID:  r.Context().Value(CtxKeyProductID).(string),
		LocationID: chi.URLParam(r, "locationId"),
		Quantity:   data.Quantity,
		ActorID:    usr.Username,
	})
	if err != nil {
		Render(w, r, ErrTransfer(err))
		return
	}

	Render(w, r, &BalanceResponse{StockBalance: b})
}

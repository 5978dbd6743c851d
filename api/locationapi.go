package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
)

const CtxKeyLocation CtxKey = "location"

type LocationApi struct {
	service location.Service
}

func NewLocationApi(service location.Service) *LocationApi {
	return &LocationApi{service: service}
}

func (a *LocationApi) ConfigureRouter(r chi.Router) {
	r.Get("/", a.List)
	r.With(AdminOnly).Post("/", a.Create)

	r.Route("/{locationId}", func(r chi.Router) {
		r.Use(a.LocationCtx)
		r.Get("/", a.Get)
		r.With(AdminOnly).Delete("/", a.Deactivate)
	})
}

type LocationResponse struct {
	location.Location
	DisplayName string `json:"displayName"`
}

func NewLocationResponse(l location.Location) *LocationResponse {
	return &LocationResponse{Location: l, DisplayName: l.DisplayName()}
}

func (l *LocationResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type CreateLocationDto struct {
	Name      string `json:"name" validate:"required,max=100"`
	LocalName string `json:"localName" validate:"max=100"`
	Kind      string `json:"kind" validate:"required,oneof=primary_store retail_store warehouse virtual"`
}

func (d *CreateLocationDto) Bind(_ *http.Request) error {
	return validate.Struct(d)
}

// List returns the active locations of the caller's business.
func (a *LocationApi) List(w http.ResponseWriter, r *http.Request) {
	locations, err := a.service.ListActiveLocations(r.Context(), currentUser(r).BusinessID)
	if err != nil {
		log.Err(err).Send()
		Render(w, r, ErrInternalServer)
		return
	}

	list := make([]render.Renderer, 0, len(locations))
	for _, l := range locations {
		list = append(list, NewLocationResponse(l))
	}
	RenderList(w, r, list)
}

func (a *LocationApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &CreateLocationDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	loc, err := a.service.Create(r.Context(), location.CreateLocationRequest{
		BusinessID: currentUser(r).BusinessID,
		Name:       data.Name,
		LocalName:  data.LocalName,
		Kind:       location.Kind(data.Kind),
	})
	if err != nil {
		if errors.Is(err, location.ErrInvalidLocation) {
			Render(w, r, ErrInvalidRequest(err))
			return
		}
		log.Err(err).Send()
		Render(w, r, ErrInternalServer)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewLocationResponse(loc))
}

// LocationCtx loads the location and hides it when it belongs to another business.
func (a *LocationApi) LocationCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "locationId")

		loc, err := a.service.GetLocation(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				Render(w, r, ErrNotFound)
			} else {
				log.Error().Err(err).Str("locationId", id).Msg("error acquiring location")
				Render(w, r, ErrInternalServer)
			}
			return
		}
		if loc.BusinessID != currentUser(r).BusinessID {
			Render(w, r, ErrNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyLocation, loc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *LocationApi) Get(w http.ResponseWriter, r *http.Request) {
	loc := r.Context().Value(CtxKeyLocation).(location.Location)
	Render(w, r, NewLocationResponse(loc))
}

func (a *LocationApi) Deactivate(w http.ResponseWriter, r *http.Request) {
	loc := r.Context().Value(CtxKeyLocation).(location.Location)

	if err := a.service.Deactivate(r.Context(), loc.ID); err != nil {
		log.Err(err).Str("locationId", loc.ID).Send()
		Render(w, r, ErrInternalServer)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

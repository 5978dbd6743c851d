package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/user"
)

type UserApi struct {
	service user.Service
}

func NewUserApi(service user.Service) *UserApi {
	return &UserApi{service: service}
}

func (a *UserApi) ConfigureRouter(r chi.Router) {
	r.With(AdminOnly).Post("/", a.Create)
}

type CreateUserRequestDto struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (p *CreateUserRequestDto) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

type UserResponse struct {
	Username   string `json:"username"`
	BusinessID string `json:"businessId"`
	IsAdmin    bool   `json:"isAdmin"`
}

func (u *UserResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

// Create adds a user to the calling admin's business.
func (a *UserApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &CreateUserRequestDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	u, err := a.service.Create(r.Context(), user.CreateUserRequest{
		Username:          data.Username,
		BusinessID:        currentUser(r).BusinessID,
		IsAdmin:           data.IsAdmin,
		PlainTextPassword: data.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidUser):
			Render(w, r, ErrInvalidRequest(err))
		case errors.Is(err, core.ErrConflict):
			Render(w, r, ErrConflict)
		default:
			log.Err(err).Send()
			Render(w, r, ErrInternalServer)
		}
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, &UserResponse{Username: u.Username, BusinessID: u.BusinessID, IsAdmin: u.IsAdmin})
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

type TransferApi struct {
	service inventory.TransferService
}

func NewTransferApi(service inventory.TransferService) *TransferApi {
	return &TransferApi{service: service}
}

func (a *TransferApi) ConfigureRouter(r chi.Router) {
	r.Post("/", a.Create)
}

type DestinationDto struct {
	LocationID string `json:"locationId"`
	External   bool   `json:"external"`
	Label      string `json:"label" validate:"max=200"`
}

type LineItemDto struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason" validate:"max=200"`
}

// TransferRequestDto leaves line item checks to the orchestrator so every bad line is reported at once.
type TransferRequestDto struct {
	Kind             string          `json:"kind" validate:"omitempty,oneof=transfer sale adjustment initial_stock"`
	SourceLocationID string          `json:"sourceLocationId"`
	Destination      *DestinationDto `json:"destination" validate:"required"`
	Lines            []LineItemDto   `json:"lines" validate:"required,min=1"`
	Reason           string          `json:"reason" validate:"max=200"`
	ReferenceID      string          `json:"referenceId" validate:"max=100"`
}

func (d *TransferRequestDto) Bind(_ *http.Request) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Destination.External == (d.Destination.LocationID != "") {
		return errors.New("destination must be either a location or external")
	}
	return nil
}

func (d *TransferRequestDto) toRequest(businessID, actorID string) inventory.TransferRequest {
	req := inventory.TransferRequest{
		BusinessID:       businessID,
		Kind:             inventory.MovementKind(d.Kind),
		SourceLocationID: d.SourceLocationID,
		Reason:           d.Reason,
		ReferenceID:      d.ReferenceID,
		ActorID:          actorID,
		Lines:            make([]inventory.LineItem, 0, len(d.Lines)),
	}
	if d.Destination.External {
		req.Destination = inventory.External{Label: d.Destination.Label}
	} else {
		req.Destination = inventory.Internal{LocationID: d.Destination.LocationID}
	}
	for _, l := range d.Lines {
		req.Lines = append(req.Lines, inventory.LineItem{ProductID: l.ProductID, Quantity: l.Quantity, Reason: l.Reason})
	}
	return req
}

type TransferResponse struct {
	inventory.TransferResult
	Movements []inventory.MovementRecord `json:"movements"`
}

func (t *TransferResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func (a *TransferApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &TransferRequestDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	usr := currentUser(r)
	res, err := a.service.Execute(r.Context(), data.toRequest(usr.BusinessID, usr.Username))
	if err != nil {
		Render(w, r, ErrTransfer(err))
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, &TransferResponse{TransferResult: res, Movements: res.Movements})
}

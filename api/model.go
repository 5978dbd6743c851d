package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core/inventory"
)

var validate = validator.New()

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string                `json:"status"`
	Kind       string                `json:"kind,omitempty"`
	Retryable  bool                  `json:"retryable,omitempty"`
	ErrorText  string                `json:"error,omitempty"`
	Fields     map[string]string     `json:"fields,omitempty"`
	Lines      []inventory.LineError `json:"lines,omitempty"`
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	resp := &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		resp.Fields = make(map[string]string, len(ve))
		for _, fe := range ve {
			resp.Fields[fe.Field()] = fe.Tag()
		}
		resp.ErrorText = "one or more fields are invalid"
	}
	return resp
}

// ErrTransfer maps a rejected inventory operation onto a response. Anything that is not a TransferError is
// treated as an internal error.
func ErrTransfer(err error) render.Renderer {
	var te *inventory.TransferError
	if !errors.As(err, &te) {
		log.Error().Err(err).Msg("unexpected inventory error")
		return ErrInternalServer
	}

	resp := &ErrResponse{
		Err:        err,
		Kind:       string(te.Kind),
		Retryable:  te.Kind.Retryable(),
		ErrorText:  te.Message,
		Lines:      te.Lines,
		StatusText: "Request rejected.",
	}
	switch te.Kind {
	case inventory.InvalidRequest:
		resp.HTTPStatusCode = http.StatusBadRequest
		resp.StatusText = "Invalid request."
	case inventory.LocationInactive, inventory.InsufficientStock:
		resp.HTTPStatusCode = http.StatusUnprocessableEntity
	case inventory.ConcurrencyConflict:
		resp.HTTPStatusCode = http.StatusConflict
		resp.StatusText = "Conflicting update, try again."
	default:
		log.Error().Err(err).Msg("inventory storage failure")
		resp.HTTPStatusCode = http.StatusInternalServerError
		resp.StatusText = "Internal server error."
		resp.ErrorText = "An internal server error has occurred."
	}
	return resp
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
var ErrConflict = &ErrResponse{HTTPStatusCode: http.StatusConflict, StatusText: "Resource already exists."}
var ErrInternalServer = &ErrResponse{
	Err:            nil,
	HTTPStatusCode: http.StatusInternalServerError,
	StatusText:     "Internal server error.",
	ErrorText:      "An internal server error has occurred.",
}

package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/sksmith/go-stock-ledger/config"
)

type EnvApi struct {
	cfg *config.Config
}

func NewEnvApi(cfg *config.Config) *EnvApi {
	return &EnvApi{cfg: cfg}
}

func (a *EnvApi) ConfigureRouter(r chi.Router) {
	r.Get("/", a.Get)
}

type EnvResponse struct {
	config.Config
}

func (er *EnvResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

// Get exposes the loaded configuration with every secret masked.
func (a *EnvApi) Get(w http.ResponseWriter, r *http.Request) {
	Render(w, r, &EnvResponse{Config: a.cfg.Scrubbed()})
}

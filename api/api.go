package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/docgen"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/config"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/core/user"
)

const (
	ApiPath       = "/api/v1"
	TransferPath  = "/transfers"
	MovementPath  = "/movements"
	StockPath     = "/stock"
	LocationPath  = "/locations"
	UserPath      = "/user"
	EnvPath       = "/env"
	HealthPath    = "/health"
	MetricsPath   = "/metrics"
	projectPath   = "github.com/sksmith/go-stock-ledger"
	routesDocHead = "Stock ledger REST API. Every route under " + ApiPath + " requires basic authentication."
)

type Services struct {
	Transfers inventory.TransferService
	Stock     inventory.StockService
	Movements inventory.MovementService
	Locations location.Service
	Users     user.Service
}

func ConfigureRouter(cfg *config.Config, s Services) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost*", "https://localhost*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(Logging)

	r.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("UP"))
	})
	r.Handle(MetricsPath, promhttp.Handler())
	r.Route(EnvPath, NewEnvApi(cfg).ConfigureRouter)

	r.With(Authenticate(s.Users)).Route(ApiPath, func(r chi.Router) {
		r.Route(TransferPath, NewTransferApi(s.Transfers).ConfigureRouter)
		r.Route(MovementPath, NewMovementApi(s.Movements, s.Transfers).ConfigureRouter)
		r.Route(StockPath, NewStockApi(s.Stock, s.Transfers).ConfigureRouter)
		r.Route(LocationPath, NewLocationApi(s.Locations).ConfigureRouter)
		r.Route(UserPath, NewUserApi(s.Users).ConfigureRouter)
	})

	return r
}

// RoutesDoc renders every route of the router as markdown.
func RoutesDoc(r chi.Router) string {
	return docgen.MarkdownRoutesDoc(r, docgen.MarkdownOpts{
		ProjectPath: projectPath,
		Intro:       routesDocHead,
	})
}

func Render(w http.ResponseWriter, r *http.Request, rnd render.Renderer) {
	if err := render.Render(w, r, rnd); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}

func RenderList(w http.ResponseWriter, r *http.Request, l []render.Renderer) {
	if err := render.RenderList(w, r, l); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tattooz/internal/http/handlers"
	"tattooz/internal/infra"
	"tattooz/internal/metrics"
	"tattooz/internal/middleware"
	"tattooz/internal/web"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	Logger          *infra.Logger
	Metrics         *metrics.Recorder
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Locale(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(*infra.LoggerOrDiscard(opts.Logger)),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	index := web.Index(app.NumImages)
	r.Get("/", index)
	r.Head("/", index)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute, opts.Metrics.ObserveRejected)).
			Post("/generate", app.Generate)
		r.Get("/generations", app.ListGenerations)
		r.Get("/generations/{id}/archive", app.GenerationArchive)
	})

	return r
}

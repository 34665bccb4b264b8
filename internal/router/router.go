package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vet-clinic-manager/internal/platform/logger"
)

type Options struct {
	Guard  *Guard
	Routes []Route
	Log    logger.Logger

	// MetricsHandler opcional: si viene, se monta en /metrics.
	MetricsHandler http.Handler
}

// NewRouter monta la tabla de rutas detrás del guard. Cada navegación
// pasa primero por Decide; un redirect sale como 303 sin tocar el handler.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	for _, route := range opts.Routes {
		r.Get(route.Path, guarded(opts.Guard, route, log))
	}

	return r
}

func guarded(g *Guard, route Route, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		d, err := g.Decide(req.Context(), route)
		if err != nil {
			// Decide solo falla si el contexto murió esperando la
			// inicialización de auth: el cliente ya se fue.
			return
		}

		if !d.Allow {
			http.Redirect(w, req, d.RedirectTo, http.StatusSeeOther)
			return
		}

		if route.Handler != nil {
			route.Handler(w, req)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

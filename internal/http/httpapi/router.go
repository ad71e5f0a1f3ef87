// Package httpapi wires the public router.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sketchy/internal/http/handlers"
	"sketchy/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS([]string{"*"}),
	)

	r.Get("/health", app.Health)
	r.Get("/files/*", app.Files)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(app.Cfg.ParseAPIKeys()))

		r.Route("/comic", func(r chi.Router) {
			r.Post("/", app.CreateComic)
			r.Get("/{id}", app.GetComic)
			r.Get("/{id}/panels/{n}", app.GetPanel)
			r.Get("/{id}/combined", app.GetCombined)
		})
		r.Get("/balance", app.Balance)
		r.Post("/webhook/test", app.WebhookTest)
	})

	return r
}

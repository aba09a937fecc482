package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sockchat/internal/app/view"
	"sockchat/internal/pkg/errs"
	"sockchat/internal/pkg/logx"
	"sockchat/internal/pkg/resp"
)

// FallbackRouter is served when the database could not be reached at startup: the index page
// reports the failure and every other route is 404.
func FallbackRouter(views *view.Renderer, dbErr error) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.NotFound(HandleNotFound)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		views.Render(w, http.StatusOK, view.PageIndex, view.IndexData{
			Title:   dbErr.Error(),
			Message: "Unable to connect to database",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
	})

	return r
}

package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sockchat/internal/pkg/errs"
	"sockchat/internal/pkg/resp"
)

// AssetURLDuration is how long a presigned asset redirect stays valid.
const AssetURLDuration = 5 * time.Minute

// HandlePublicAsset serves /public/* from the local directory, or redirects to a presigned
// bucket URL when an asset bucket is configured. Directory listings are never served.
func HandlePublicAsset(deps *AppDeps) http.HandlerFunc {
	fileServer := http.StripPrefix("/public/", http.FileServer(http.Dir(deps.Config.PublicDir)))

	return func(w http.ResponseWriter, r *http.Request) {
		path := chi.URLParam(r, "*")
		if path == "" || strings.HasSuffix(path, "/") {
			HandleNotFound(w, r)
			return
		}

		if deps.Assets == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		logger := zerolog.Ctx(r.Context())

		exists, err := deps.Assets.Exists(r.Context(), path)
		if err != nil {
			logger.Error().Err(err).Str("asset", path).Msg("asset lookup failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		if !exists {
			HandleNotFound(w, r)
			return
		}

		presigned, err := deps.Assets.PresignDownload(r.Context(), path, AssetURLDuration)
		if err != nil {
			logger.Error().Err(err).Str("asset", path).Msg("asset presign failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		w.Header().Set("Cache-Control", "private, max-age=60")
		http.Redirect(w, r, presigned, http.StatusFound)
	}
}

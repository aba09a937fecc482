/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

HandleWebSocket rate limits the request, asks the session Authorizer for a decision before any
upgrade, and hands accepted connections to the Hub with the identity they were accepted with.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sockchat/internal/app/session"
	"sockchat/internal/pkg/errs"
	"sockchat/internal/pkg/limiter"
	"sockchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		if !rateLimiter.Allow(r) {
			logger.Warn().Msg("WebSocket connection rejected: Rate limit exceeded.")
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		switch d := deps.Authorizer.Authorize(r).(type) {
		case session.Rejected:
			logger.Info().Err(d.Err).Stringer("reason", d.Reason).Msg("WebSocket handshake rejected.")

			if d.Reason == session.ReasonStoreUnavailable {
				resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, d.Err))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))

		case session.Accepted:
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
				return
			}

			logger.Info().Str("username", d.Identity.Username).Msg("WebSocket connection established")

			if err := deps.Hub.Serve(conn, d.Identity); err != nil {
				logger.Warn().Err(err).Msg("WebSocket connection refused by hub")
			}
		}
	}
}

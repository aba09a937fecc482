/*
Package handler provides the HTTP handlers and routing setup for sockchat.

This file defines the main Router, applying middleware like logging, CORS, sessions and
IP-based rate limiting before delegating requests to the page, form, API and WebSocket handlers.
*/
package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"sockchat/internal/pkg/limiter"
	"sockchat/internal/pkg/logx"
	"sockchat/internal/pkg/resp"
)

const (
	AuthRate  = 0.5
	AuthBurst = 10
	WSRate    = 0.5
	WSBurst   = 10
	PowRate   = 1
	PowBurst  = 10
)

// Router sets up the main HTTP routing table for the application.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	wsLimiter := limiter.NewIPRateLimiter(rate.Limit(WSRate), WSBurst)
	powLimiter := limiter.NewIPRateLimiter(rate.Limit(PowRate), PowBurst)

	r := chi.NewRouter()

	r.Use(corsHandler(deps))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.NotFound(HandleNotFound)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     "sockchat",
			"connections": deps.Hub.Connections(),
		})
	})

	r.Route("/api/pow", func(api chi.Router) {
		api.Use(powLimiter.Middleware)
		api.Get("/challenge", HandlePowChallenge(deps))
		api.Post("/verify", HandlePowVerify(deps))
	})

	r.Get("/public/*", HandlePublicAsset(deps))

	// The upgrade endpoint reads the session cookie itself and never creates sessions.
	r.Get("/ws", HandleWebSocket(deps, newUpgrader(deps), wsLimiter))

	r.Group(func(pages chi.Router) {
		pages.Use(deps.Sessions.Middleware)

		pages.Get("/", HandleIndex(deps))
		pages.Get("/logout", HandleLogout(deps))

		pages.With(authLimiter.Middleware).Post("/login", HandleLogin(deps))
		pages.With(authLimiter.Middleware).Post("/register", HandleRegister(deps))

		pages.Group(func(private chi.Router) {
			private.Use(deps.Sessions.RequireAuth("/"))
			private.Get("/profile", HandleProfile(deps))
			private.Get("/chat", HandleChat(deps))
		})
	})

	return r
}

func corsHandler(deps *AppDeps) func(http.Handler) http.Handler {
	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler
}

// newUpgrader accepts same-origin upgrades, configured origins, and anything in development.
func newUpgrader(deps *AppDeps) websocket.Upgrader {
	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}
}

// HandleNotFound answers every unknown route.
func HandleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not Found"))
}

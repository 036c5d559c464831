/*
Package handler provides the HTTP handlers and routing setup for the chat coordinator.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to the health, metrics and
WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatcoord/internal/pkg/limiter"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/resp"
)

// healthData is the /health payload.
type healthData struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	OnlineSessions int    `json:"onlineSessions"`
	Users          int    `json:"users"`
	Messages       int    `json:"messages"`
}

// Router sets up the main HTTP routing table (chi.Router) for the application.
// ctx bounds the lifetime of the background limiter sweeper.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	wsLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.WSRate), deps.Config.WSBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		m := deps.Manager
		resp.RespondSuccess(w, r, healthData{
			Status:         "ok",
			Service:        "chatcoord",
			OnlineSessions: m.Sessions.Count(),
			Users:          m.Users.Count(),
			Messages:       m.Messages.Count(),
		})
	})

	r.Method(http.MethodGet, "/metrics", deps.Manager.Metrics.Handler())

	r.With(wsLimiter.Middleware).Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader))

	return r
}

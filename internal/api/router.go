// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the global middleware stack.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSOrigins:       []string{"*"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// NewRouter wires all routes. CORS is global so OPTIONS preflight
// works; rate limiting covers the API surface but not the websocket
// upgrade or metrics scrape.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/talkgroups", func(r chi.Router) {
			r.Get("/", h.GetTalkgroups)
			r.Post("/reload", h.ReloadTalkgroups)
			r.Post("/{decimal}", h.UpdateTalkgroup)
			r.Get("/{id}/history", h.TalkgroupHistory)
		})

		r.Get("/history/{duration}", h.DurationHistory)

		r.Route("/system-alias/{shortName}", func(r chi.Router) {
			r.Get("/", h.GetSystemAlias)
			r.Post("/", h.SetSystemAlias)
		})

		r.Get("/config", h.GetConfig)
		r.Get("/version", h.Version)
		r.Post("/event", h.IngestEvent)
	})

	r.Get("/health", h.Health)
	r.Get("/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

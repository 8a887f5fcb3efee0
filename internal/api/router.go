// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/middleware"
)

// Router assembles the HTTP surface.
type Router struct {
	cfg      *config.Config
	handlers *Handlers
	auth     *middleware.Authenticator
}

// NewRouter creates a Router.
func NewRouter(cfg *config.Config, handlers *Handlers, auth *middleware.Authenticator) *Router {
	return &Router{cfg: cfg, handlers: handlers, auth: auth}
}

// Handler builds the Chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health is unauthenticated but rate limited permissively so probes
	// and dashboards can poll it freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", rt.handlers.Health)
	})

	// Cluster read and mutation endpoints. Mutations additionally require
	// an elevated role.
	r.Route("/api/v1/k8s", func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Use(middleware.Prometheus)
		r.Use(rt.auth.Authenticate)

		r.Get("/namespaces", rt.handlers.Namespaces)
		r.Get("/pods", rt.handlers.Pods)
		r.Get("/deployments", rt.handlers.Deployments)
		r.Get("/events", rt.handlers.Events)
		r.Get("/metrics", rt.handlers.PodMetrics)
		r.Get("/logs/stream", rt.handlers.StreamLogs)

		r.With(middleware.Authorize("admin", "operator")).
			Post("/scale", rt.handlers.Scale)
		r.With(middleware.Authorize("admin")).
			Post("/pods/{pod}/restart", rt.handlers.RestartPod)
		r.With(middleware.Authorize("admin")).
			Delete("/pods/{pod}", rt.handlers.DeletePod)
	})

	// Assistant calls a paid upstream, so the rate limit is strict.
	r.Route("/api/v1/assistant", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Use(middleware.Prometheus)
		r.Use(rt.auth.Authenticate)

		r.Post("/chat", rt.handlers.AssistantChat)
	})

	// Websocket namespaces. Browsers cannot set Authorization headers on
	// websocket upgrades, so Authenticate also accepts ?token=.
	r.Route("/ws", func(r chi.Router) {
		r.Use(rt.auth.Authenticate)

		r.Get("/chat", rt.handlers.ChatSocket)
		r.Get("/logs", rt.handlers.LogsSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

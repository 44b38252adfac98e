// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/sentinel/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
}

// NewRouter creates a router. A nil mw takes the default middleware config.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, mw: mw}
}

// Setup builds the chi mux.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, CodeNotFound, "no such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", router.handler.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.mw.RateLimit())

		r.Get("/anomalies", router.handler.ListAnomalies)
		r.Get("/anomalies/{id}", router.handler.GetAnomaly)
		r.Get("/stats", router.handler.Stats)
		r.Get("/detectors", router.handler.Detectors)
		r.Patch("/detectors/{rule}", router.handler.UpdateDetector)
	})

	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Dashboard sessions. Deployed dashboards connect to ws://host/.
	if path := s.wsCfg.Path; path != "" && path != "/" {
		r.Get(path, s.handleWebSocket)
	}
	r.Get("/", s.handleRoot)

	// Dashboard assets
	if s.dashboard != nil {
		r.Handle("/*", s.dashboard)
	}

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{brand}/{deviceId}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/history", s.handleDeviceHistory)
			})
		})
	})

	return r
}

// handleRoot upgrades WebSocket requests and otherwise serves the dashboard
// index, or a plain status when the dashboard is disabled.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	if s.dashboard != nil {
		s.dashboard.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "acbridge",
		"version": s.version,
	})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mqttUp := s.bus != nil && s.bus.Connected()
	status := "ok"
	if !mqttUp {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"mqtt":    mqttUp,
		"clients": s.hub.ClientCount(),
		"devices": s.registry.Len(),
	})
}

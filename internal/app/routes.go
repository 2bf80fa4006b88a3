package app

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all HTTP handlers for the application.
func (a *App) registerRoutes() {
	a.Mux.HandleFunc("/", a.handleIndex)

	// API routes
	a.Mux.HandleFunc("/api/latest", a.handleLatest)
	a.Mux.HandleFunc("/api/readings", a.handleReadings)

	if a.Live != nil {
		a.Mux.Handle("/ws", a.Live)
	}
	if a.Gatherer != nil {
		a.Mux.Handle("/metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		}))
	}
}

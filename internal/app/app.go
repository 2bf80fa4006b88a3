// Package app implements the read-only HTTP API of AirNode: latest and recent
// readings from the store, a live websocket feed and Prometheus metrics.
package app

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/sink"
)

// Store is the query side of the reading store (sink.BoltSink).
type Store interface {
	Latest() (*sink.Row, error)
	Recent(n int) ([]sink.Row, error)
}

// App bundles the handlers and the HTTP server. Any of Store, Live and Gatherer may
// be nil; their routes then answer 503.
type App struct {
	Store    Store
	Live     http.Handler
	Gatherer prometheus.Gatherer
	Tmpl     *template.Template
	Mux      *http.ServeMux
	Server   *http.Server

	ln  net.Listener
	log *log.Entry
}

// NewApp initializes the web app with its template and routes.
func NewApp(store Store, live http.Handler, gatherer prometheus.Gatherer) *App {
	tmpl := template.Must(template.New("index").Funcs(template.FuncMap{
		"value": formatValue,
	}).Parse(indexHTML))

	a := &App{
		Store:    store,
		Live:     live,
		Gatherer: gatherer,
		Tmpl:     tmpl,
		Mux:      http.NewServeMux(),
		log:      log.WithField("component", "app"),
	}
	a.registerRoutes()
	return a
}

// Start listens on addr and serves until stopped.
func (a *App) Start(addr string) error {
	if addr == "" {
		a.log.Info("app server not started (empty address)")
		return nil
	}
	if err := a.Listen(addr); err != nil {
		return err
	}
	return a.Serve()
}

// Listen binds addr ("8080", ":8080" or "http://host:8080") and prepares the server.
func (a *App) Listen(addr string) error {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	a.ln = ln
	a.Server = &http.Server{
		Addr:              addr,
		Handler:           logRequests(a.log, a.Mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.log.Infof("web server listening at http://%s", ln.Addr())
	return nil
}

// Serve blocks until Stop is called. It returns nil when Listen was not called.
func (a *App) Serve() error {
	if a.Server == nil {
		return nil
	}
	if err := a.Server.Serve(a.ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Stop gracefully stops the web server.
func (a *App) Stop() {
	if a == nil || a.Server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("http server shutdown")
		return
	}
	a.log.Info("web server stopped cleanly")
}

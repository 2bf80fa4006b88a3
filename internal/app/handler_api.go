package app

import (
	"encoding/json"
	"net/http"
	"strconv"

	"AirNode/internal/sink"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// handleLatest returns the newest stored reading.
func (a *App) handleLatest(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "no store configured", http.StatusServiceUnavailable)
		return
	}
	row, err := a.Store.Latest()
	if err != nil {
		a.log.WithError(err).Error("read latest reading")
		http.Error(w, "failed to read readings", http.StatusInternalServerError)
		return
	}
	if row == nil {
		http.Error(w, "no data available", http.StatusNotFound)
		return
	}
	a.writeJSON(w, row)
}

// handleReadings returns up to ?limit= readings, newest first.
func (a *App) handleReadings(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "no store configured", http.StatusServiceUnavailable)
		return
	}
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}
	rows, err := a.Store.Recent(limit)
	if err != nil {
		a.log.WithError(err).Error("read recent readings")
		http.Error(w, "failed to read readings", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []sink.Row{}
	}
	a.writeJSON(w, rows)
}

func (a *App) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.WithError(err).Warn("write response")
	}
}

package app

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level. The websocket route is passed
// through untouched so the upgrade can hijack the connection.
func logRequests(l *log.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		l.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sw.status,
			"took":   time.Since(start),
		}).Debug("request")
	})
}

package server

import (
	"net/http"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// instrument counts the request, recovers panics as a 500 response, and
// records the request in the HTTP metrics and the log.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", p)
				if !rec.wroteHeader {
					s.internalError(rec)
				}
			}

			elapsed := time.Since(start)
			route := routeLabel(r.Pattern)
			s.http.observe(r.Method, route, rec.status, elapsed)
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds())
		}()

		next.ServeHTTP(rec, r)
	})
}

// routeLabel keeps metric cardinality bounded: unmatched paths share one
// label.
func routeLabel(pattern string) string {
	switch pattern {
	case "", "/":
		return "unmatched"
	case "GET /{$}":
		return "/"
	}
	return strings.TrimPrefix(pattern, "GET ")
}

package edge

import (
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/id"
)

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = id.New()
			r.Header.Set(HeaderRequestID, requestID)
		}
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Printf(
			"%s %s status=%d cache=%s bytes=%d duration=%s request_id=%s",
			r.Method,
			r.URL.RequestURI(),
			recorder.status,
			recorder.Header().Get(HeaderCacheStatus),
			recorder.bytes,
			time.Since(start).Round(time.Millisecond),
			r.Header.Get(HeaderRequestID),
		)
	})
}

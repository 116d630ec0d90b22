package edge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/dunamismax/pixelgate/internal/normalize"
	"github.com/dunamismax/pixelgate/internal/queue"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderCacheStatus = "X-Pixelgate-Cache"
	HeaderRequestID   = "X-Request-Id"
)

var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"X-Pixelgate-Region",
	"Server-Timing",
}

type upstreamFetcher interface {
	FetchVariant(ctx context.Context, variantKey string) (*http.Response, error)
	FetchOrigin(ctx context.Context, path string, forward http.Header) (*http.Response, string, error)
}

type prewarmEnqueuer interface {
	EnqueuePrewarm(ctx context.Context, payload queue.PrewarmPayload) (*asynq.TaskInfo, error)
}

type Server struct {
	logger         *log.Logger
	upstream       upstreamFetcher
	queueClient    prewarmEnqueuer
	rateLimiter    RateLimiter
	clientIDHeader string
	prewarmWidths  []int
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(logger *log.Logger, upstream upstreamFetcher, queueClient prewarmEnqueuer, rateLimiter RateLimiter, cfg config.EdgeConfig) *Server {
	clientIDHeader := strings.TrimSpace(cfg.ClientIDHeader)
	if clientIDHeader == "" {
		clientIDHeader = "X-Client-Id"
	}

	s := &Server{
		logger:         logger,
		upstream:       upstream,
		queueClient:    queueClient,
		rateLimiter:    rateLimiter,
		clientIDHeader: clientIDHeader,
		prewarmWidths:  cfg.PrewarmWidths,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("pixelgate/edge"),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.withRequestLogging(s.metrics.withHTTPMetrics(s.withTracing(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /", s.handleImage)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	req := normalize.FromHTTP(r)
	ops := normalize.Rewrite(req)
	sourceKey := strings.TrimPrefix(r.URL.Path, "/")
	variantKey := ops.VariantKey(sourceKey)

	if s.serveFromVariants(w, r, variantKey) {
		return
	}

	if !s.allowMiss(w, r) {
		return
	}

	s.enqueuePrewarms(r.Context(), sourceKey, ops)
	s.serveFromOrigin(w, r, req.URI)
}

func (s *Server) serveFromVariants(w http.ResponseWriter, r *http.Request, variantKey string) bool {
	resp, err := s.upstream.FetchVariant(r.Context(), variantKey)
	if err != nil {
		s.logger.Printf("variant lookup failed key=%s err=%v", variantKey, err)
		s.metrics.cacheTotal.WithLabelValues("miss").Inc()
		return false
	}

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp)
		s.metrics.cacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	defer resp.Body.Close()

	s.metrics.cacheTotal.WithLabelValues("hit").Inc()
	copyUpstreamHeaders(w, resp)
	w.Header().Set(HeaderCacheStatus, "hit")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Printf("stream variant failed key=%s err=%v", variantKey, err)
	}
	return true
}

func (s *Server) serveFromOrigin(w http.ResponseWriter, r *http.Request, path string) {
	resp, origin, err := s.upstream.FetchOrigin(r.Context(), path, r.Header)
	if err != nil {
		s.logger.Printf("origin fetch failed path=%s err=%v", path, err)
		s.metrics.originErrors.Inc()
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "origin fetch failed"})
		return
	}
	defer resp.Body.Close()

	s.metrics.originFetches.WithLabelValues(origin).Inc()
	copyUpstreamHeaders(w, resp)
	w.Header().Set(HeaderCacheStatus, "miss")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Printf("stream origin response failed path=%s err=%v", path, err)
	}
}

func (s *Server) enqueuePrewarms(ctx context.Context, sourceKey string, ops domain.Operations) {
	if s.queueClient == nil || len(s.prewarmWidths) == 0 {
		return
	}

	for _, width := range s.prewarmWidths {
		if width <= 0 || width > domain.MaxDimension || width == ops.Width {
			continue
		}

		payload := queue.PrewarmPayload{
			SourceKey: sourceKey,
			Operations: domain.Operations{
				Format:  ops.Format,
				Quality: ops.Quality,
				Width:   width,
			},
			RequestedAt: time.Now().UTC(),
		}

		if _, err := s.queueClient.EnqueuePrewarm(ctx, payload); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				s.metrics.prewarmsEnqueued.WithLabelValues("duplicate").Inc()
				continue
			}
			s.logger.Printf("prewarm enqueue failed key=%s width=%d err=%v", sourceKey, width, err)
			s.metrics.prewarmsEnqueued.WithLabelValues("error").Inc()
			continue
		}
		s.metrics.prewarmsEnqueued.WithLabelValues("enqueued").Inc()
	}
}

func copyUpstreamHeaders(w http.ResponseWriter, resp *http.Response) {
	for _, header := range passthroughHeaders {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

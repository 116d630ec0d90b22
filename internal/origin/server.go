package origin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/storage"
	"github.com/dunamismax/pixelgate/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const HeaderRegion = "X-Pixelgate-Region"

var errInvalidRenderPath = errors.New("expected path format /{source-key}/{operations}")

type variantGenerator interface {
	Generate(ctx context.Context, sourceKey string, ops domain.Operations) (pipeline.Variant, error)
}

type Server struct {
	logger     *log.Logger
	generator  variantGenerator
	renditions store.RenditionStore
	region     string
	metrics    *metrics
	tracer     trace.Tracer
	mux        *http.ServeMux
}

func NewServer(logger *log.Logger, generator variantGenerator, renditions store.RenditionStore, region string) *Server {
	if strings.TrimSpace(region) == "" {
		region = "local"
	}
	if renditions == nil {
		renditions = store.NewMemoryRenditionStore()
	}

	s := &Server{
		logger:     logger,
		generator:  generator,
		renditions: renditions,
		region:     region,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixelgate/origin"),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /renditions", s.handleRecentRenditions)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("/", s.handleRender)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "region": s.region})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(HeaderRegion, s.region)

	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only GET requests are supported"})
		return
	}

	variant, err := s.renderVariant(r.Context(), r.URL.EscapedPath())
	if err != nil {
		switch {
		case errors.Is(err, errInvalidRenderPath):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, storage.ErrObjectNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "source image not found"})
		default:
			s.logger.Printf("render failed path=%s err=%v", r.URL.Path, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "variant generation failed"})
		}
		return
	}

	w.Header().Set("Content-Type", variant.ContentType)
	w.Header().Set("Cache-Control", variant.CacheControl)
	w.Header().Set("Server-Timing", variant.ServerTiming())
	w.Header().Set("Content-Length", strconv.Itoa(len(variant.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(variant.Data)
}

func (s *Server) renderVariant(ctx context.Context, rawPath string) (pipeline.Variant, error) {
	sourceKey, segment, err := splitRenderPath(rawPath)
	if err != nil {
		return pipeline.Variant{}, err
	}

	ops := domain.ParseOperationsSegment(segment)
	variant, err := s.generator.Generate(ctx, sourceKey, ops)
	if err != nil {
		return pipeline.Variant{}, fmt.Errorf("generate %s: %w", sourceKey, err)
	}

	s.metrics.variantsTotal.WithLabelValues(variant.Format).Inc()
	s.metrics.variantBytesTotal.Add(float64(len(variant.Data)))
	s.metrics.observeStages(variant)
	s.recordRendition(ctx, ops, variant)

	return variant, nil
}

func (s *Server) recordRendition(ctx context.Context, ops domain.Operations, variant pipeline.Variant) {
	if s.renditions == nil {
		return
	}

	rendition := domain.Rendition{
		VariantKey: variant.Key,
		SourceKey:  variant.SourceKey,
		Operations: ops.Segment(),
		Format:     variant.Format,
		Width:      variant.Width,
		Height:     variant.Height,
		Bytes:      int64(len(variant.Data)),
		DurationMS: variant.FetchMS + variant.TransformMS + variant.StoreMS,
		Trigger:    domain.TriggerOrigin,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.renditions.Record(ctx, rendition); err != nil {
		s.logger.Printf("rendition record failed variant=%s err=%v", variant.Key, err)
	}
}

func (s *Server) handleRecentRenditions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	renditions, err := s.renditions.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list renditions failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list renditions"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(renditions),
		"renditions": renditions,
	})
}

func splitRenderPath(rawPath string) (string, string, error) {
	trimmed := strings.Trim(rawPath, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", "", errInvalidRenderPath
	}

	sourceKey, err := url.PathUnescape(trimmed[:idx])
	if err != nil {
		return "", "", errInvalidRenderPath
	}
	segment, err := url.PathUnescape(trimmed[idx+1:])
	if err != nil {
		return "", "", errInvalidRenderPath
	}
	return sourceKey, segment, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/queue"
	"github.com/dunamismax/pixelgate/internal/storage"
	"github.com/dunamismax/pixelgate/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger     *log.Logger
	server     *asynq.Server
	sem        chan struct{}
	storage    variantStorage
	generator  variantGenerator
	renditions store.RenditionStore
	metrics    *metrics
	tracer     trace.Tracer
}

type variantStorage interface {
	VariantExists(ctx context.Context, objectKey string) (bool, error)
}

type variantGenerator interface {
	Generate(ctx context.Context, sourceKey string, ops domain.Operations) (pipeline.Variant, error)
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	storageClient *storage.Client,
	generator *pipeline.Generator,
	renditions store.RenditionStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("variant generator is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:        make(chan struct{}, max(1, workerCfg.MaxActivePrewarms)),
		storage:    storageClient,
		generator:  generator,
		renditions: renditions,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixelgate/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePrewarmVariant, s.handlePrewarmVariant)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handlePrewarmVariant(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParsePrewarmPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	variantKey := payload.VariantKey()

	ctx, span := s.tracer.Start(ctx, "worker.prewarm_variant", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("variant.key", variantKey),
		attribute.String("variant.source_key", payload.SourceKey),
		attribute.String("variant.operations", payload.Operations.Segment()),
	)
	defer span.End()
	defer func() {
		s.metrics.prewarmDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.prewarmsTotal.WithLabelValues(outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activePrewarms.Inc()
	defer func() {
		<-s.sem
		s.metrics.activePrewarms.Dec()
	}()

	s.logger.Printf("Prewarming... variant=%s source=%s", variantKey, payload.SourceKey)

	exists, err := s.storage.VariantExists(ctx, variantKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "variant lookup failed")
		return fmt.Errorf("check variant %s: %w", variantKey, err)
	}
	if exists {
		outcome = "skipped"
		span.SetStatus(codes.Ok, "already warm")
		return nil
	}

	variant, err := s.generator.Generate(ctx, payload.SourceKey, payload.Operations)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, storage.ErrObjectNotFound) {
			span.SetStatus(codes.Error, "original missing")
			return fmt.Errorf("generate variant: %v: %w", err, asynq.SkipRetry)
		}
		span.SetStatus(codes.Error, "generate failed")
		return fmt.Errorf("generate variant: %w", err)
	}

	s.metrics.variantBytesTotal.Add(float64(len(variant.Data)))
	s.recordRendition(ctx, payload, variant, startedAt)

	s.logger.Printf("Prewarmed variant=%s bytes=%d", variant.Key, len(variant.Data))
	outcome = "warmed"
	span.SetStatus(codes.Ok, "warmed")
	return nil
}

func (s *Server) recordRendition(ctx context.Context, payload queue.PrewarmPayload, variant pipeline.Variant, startedAt time.Time) {
	if s.renditions == nil {
		return
	}

	rendition := domain.Rendition{
		VariantKey: variant.Key,
		SourceKey:  variant.SourceKey,
		Operations: payload.Operations.Segment(),
		Format:     variant.Format,
		Width:      variant.Width,
		Height:     variant.Height,
		Bytes:      int64(len(variant.Data)),
		DurationMS: time.Since(startedAt).Milliseconds(),
		Trigger:    domain.TriggerPrewarm,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.renditions.Record(ctx, rendition); err != nil {
		s.logger.Printf("rendition record failed variant=%s err=%v", variant.Key, err)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

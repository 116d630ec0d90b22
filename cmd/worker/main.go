package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/storage"
	"github.com/dunamismax/pixelgate/internal/store"
	"github.com/dunamismax/pixelgate/internal/telemetry"
	"github.com/dunamismax/pixelgate/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "pixelgate-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Access:          cfg.Storage.AccessKey,
		Secret:          cfg.Storage.SecretKey,
		OriginalsBucket: cfg.Storage.OriginalsBucket,
		VariantsBucket:  cfg.Storage.VariantsBucket,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("build storage client: %v", err)
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
	err = storageClient.EnsureBuckets(setupCtx)
	cancelSetup()
	if err != nil {
		logger.Fatalf("ensure buckets: %v", err)
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("start image pipeline: %v", err)
	}
	defer pipeline.Shutdown()

	generator, err := pipeline.NewGenerator(storageClient, cfg.Origin.Region, cfg.Origin.CacheTTLSeconds, cfg.Origin.DefaultQuality)
	if err != nil {
		logger.Fatalf("build variant generator: %v", err)
	}

	var renditions store.RenditionStore
	switch cfg.Database.Backend {
	case "postgres":
		connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := store.NewPostgresRenditionStore(connectCtx, cfg.Database.DSN)
		cancelConnect()
		if err != nil {
			logger.Fatalf("connect rendition store: %v", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Printf("rendition store close error: %v", err)
			}
		}()
		renditions = pg
	default:
		renditions = store.NewMemoryRenditionStore()
	}

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, storageClient, generator, renditions)
	if err != nil {
		logger.Fatalf("build worker: %v", err)
	}

	metricsServer := &http.Server{
		Addr:         cfg.Worker.MetricsAddr,
		Handler:      srv.MetricsHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_prewarms=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActivePrewarms,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}

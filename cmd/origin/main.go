package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/origin"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/storage"
	"github.com/dunamismax/pixelgate/internal/store"
	"github.com/dunamismax/pixelgate/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[origin] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "pixelgate-origin",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

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

	logger.Printf(
		"starting origin region=%s cache_ttl=%ds default_quality=%d rendition_store=%s originals=%s variants=%s",
		cfg.Origin.Region,
		cfg.Origin.CacheTTLSeconds,
		cfg.Origin.DefaultQuality,
		cfg.Database.Backend,
		storageClient.OriginalsBucket(),
		storageClient.VariantsBucket(),
	)

	app := origin.NewServer(logger, generator, renditions, cfg.Origin.Region)

	httpServer := &http.Server{
		Addr:         cfg.Origin.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Origin.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/origin"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/storage"
	"github.com/dunamismax/pixelgate/internal/store"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[origin-lambda] ", log.LstdFlags|log.Lmsgprefix)

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

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("start image pipeline: %v", err)
	}

	generator, err := pipeline.NewGenerator(storageClient, cfg.Origin.Region, cfg.Origin.CacheTTLSeconds, cfg.Origin.DefaultQuality)
	if err != nil {
		logger.Fatalf("build variant generator: %v", err)
	}

	app := origin.NewServer(logger, generator, store.NewMemoryRenditionStore(), cfg.Origin.Region)
	handler := origin.NewLambdaHandler(app)

	logger.Printf("starting origin lambda region=%s", cfg.Origin.Region)
	lambda.Start(handler.Handle)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/dunamismax/pixelgate/internal/storage"
)

type Variant struct {
	Key          string
	SourceKey    string
	Data         []byte
	ContentType  string
	CacheControl string
	Format       string
	Width        int
	Height       int
	FetchMS      int64
	TransformMS  int64
	StoreMS      int64
	Passthrough  bool
}

func (v Variant) ServerTiming() string {
	return fmt.Sprintf("img-fetch;dur=%d, img-transform;dur=%d, img-store;dur=%d", v.FetchMS, v.TransformMS, v.StoreMS)
}

type objectStore interface {
	ReadOriginal(ctx context.Context, objectKey string) ([]byte, string, error)
	WriteVariant(ctx context.Context, objectKey string, data []byte, put storage.VariantPut) error
}

type Generator struct {
	store           objectStore
	transformer     Transformer
	region          string
	cacheTTLSeconds int
}

func NewGenerator(store objectStore, region string, cacheTTLSeconds, defaultQuality int) (*Generator, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}

	transformer, err := newTransformer(defaultQuality)
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	if strings.TrimSpace(region) == "" {
		region = "local"
	}
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = 86400
	}

	return &Generator{
		store:           store,
		transformer:     transformer,
		region:          region,
		cacheTTLSeconds: cacheTTLSeconds,
	}, nil
}

func (g *Generator) Generate(ctx context.Context, sourceKey string, ops domain.Operations) (Variant, error) {
	sourceKey = strings.Trim(strings.TrimSpace(sourceKey), "/")
	if sourceKey == "" {
		return Variant{}, errors.New("source key is required")
	}

	fetchStart := time.Now()
	original, sourceContentType, err := g.store.ReadOriginal(ctx, sourceKey)
	if err != nil {
		return Variant{}, fmt.Errorf("fetch stage: %w", err)
	}

	variant := Variant{
		Key:          ops.VariantKey(sourceKey),
		SourceKey:    sourceKey,
		CacheControl: fmt.Sprintf("public, max-age=%d", g.cacheTTLSeconds),
		FetchMS:      time.Since(fetchStart).Milliseconds(),
	}

	transformStart := time.Now()
	if isSVGSource(sourceKey, sourceContentType) {
		variant.Data = original
		variant.Format = domain.FormatSVG
		variant.ContentType = domain.ContentTypeForFormat(domain.FormatSVG)
		variant.Passthrough = true
	} else {
		data, format, width, height, err := g.transformer.Transform(ctx, original, ops)
		if err != nil {
			return Variant{}, fmt.Errorf("transform stage: %w", err)
		}
		variant.Data = data
		variant.Format = format
		variant.ContentType = domain.ContentTypeForFormat(format)
		variant.Width = width
		variant.Height = height
	}
	variant.TransformMS = time.Since(transformStart).Milliseconds()

	storeStart := time.Now()
	put := storage.VariantPut{
		ContentType:  variant.ContentType,
		CacheControl: variant.CacheControl,
		Metadata: map[string]string{
			"source-key": sourceKey,
			"operations": ops.Segment(),
			"region":     g.region,
		},
		Tags: map[string]string{
			"transformed-in": g.region,
		},
	}
	if err := g.store.WriteVariant(ctx, variant.Key, variant.Data, put); err != nil {
		return Variant{}, fmt.Errorf("store stage: %w", err)
	}
	variant.StoreMS = time.Since(storeStart).Milliseconds()

	return variant, nil
}

func isSVGSource(key, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(key), ".svg") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "image/svg")
}

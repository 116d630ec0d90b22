package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/dunamismax/pixelgate/internal/storage"
)

type fakeOriginal struct {
	data        []byte
	contentType string
}

type fakeObjectStore struct {
	originals map[string]fakeOriginal
	putKey    string
	putData   []byte
	put       storage.VariantPut
	writeErr  error
}

func (s *fakeObjectStore) ReadOriginal(_ context.Context, objectKey string) ([]byte, string, error) {
	obj, ok := s.originals[objectKey]
	if !ok {
		return nil, "", fmt.Errorf("original %s: %w", objectKey, storage.ErrObjectNotFound)
	}
	return obj.data, obj.contentType, nil
}

func (s *fakeObjectStore) WriteVariant(_ context.Context, objectKey string, data []byte, put storage.VariantPut) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.putKey = objectKey
	s.putData = data
	s.put = put
	return nil
}

func TestGeneratorStoresTransformedVariant(t *testing.T) {
	store := &fakeObjectStore{originals: map[string]fakeOriginal{
		"img/cat.png": {data: buildTestPNG(t, 240, 120), contentType: "image/png"},
	}}

	gen, err := NewGenerator(store, "eu-west", 3600, 75)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	ops := domain.Operations{Format: domain.FormatJPEG, Quality: 80, Width: 80}
	variant, err := gen.Generate(context.Background(), "/img/cat.png", ops)
	if err != nil {
		t.Fatalf("generate variant: %v", err)
	}

	if variant.Key != "img/cat.png/format=jpeg,quality=80,width=80" {
		t.Fatalf("unexpected variant key: %s", variant.Key)
	}
	if store.putKey != variant.Key {
		t.Fatalf("expected stored key %s, got %s", variant.Key, store.putKey)
	}
	if variant.ContentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg content type, got %s", variant.ContentType)
	}
	if variant.Width != 80 || variant.Height != 40 {
		t.Fatalf("expected 80x40 variant, got %dx%d", variant.Width, variant.Height)
	}
	if variant.CacheControl != "public, max-age=3600" {
		t.Fatalf("unexpected cache control: %s", variant.CacheControl)
	}
	if store.put.ContentType != "image/jpeg" {
		t.Fatalf("expected stored content type image/jpeg, got %s", store.put.ContentType)
	}
	if store.put.Metadata["source-key"] != "img/cat.png" {
		t.Fatalf("unexpected source-key metadata: %s", store.put.Metadata["source-key"])
	}
	if store.put.Metadata["operations"] != "format=jpeg,quality=80,width=80" {
		t.Fatalf("unexpected operations metadata: %s", store.put.Metadata["operations"])
	}
	if store.put.Metadata["region"] != "eu-west" {
		t.Fatalf("unexpected region metadata: %s", store.put.Metadata["region"])
	}
	if store.put.Tags["transformed-in"] != "eu-west" {
		t.Fatalf("unexpected transformed-in tag: %s", store.put.Tags["transformed-in"])
	}

	decoded, _, err := image.Decode(bytes.NewReader(store.putData))
	if err != nil {
		t.Fatalf("decode stored variant: %v", err)
	}
	if got := decoded.Bounds().Dx(); got != 80 {
		t.Fatalf("expected stored width 80, got %d", got)
	}
}

func TestGeneratorSVGPassthrough(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`)
	store := &fakeObjectStore{originals: map[string]fakeOriginal{
		"icons/logo.svg": {data: svg, contentType: "image/svg+xml"},
	}}

	gen, err := NewGenerator(store, "local", 0, 0)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	variant, err := gen.Generate(context.Background(), "icons/logo.svg", domain.Operations{
		Format: domain.FormatPNG,
		Width:  300,
	})
	if err != nil {
		t.Fatalf("generate variant: %v", err)
	}

	if !variant.Passthrough {
		t.Fatal("expected svg source to pass through untransformed")
	}
	if !bytes.Equal(variant.Data, svg) {
		t.Fatal("expected svg bytes unchanged")
	}
	if variant.ContentType != "image/svg+xml" {
		t.Fatalf("expected image/svg+xml content type, got %s", variant.ContentType)
	}
	if variant.Key != "icons/logo.svg/format=png,width=300" {
		t.Fatalf("unexpected variant key: %s", variant.Key)
	}
	if store.putKey != variant.Key {
		t.Fatalf("expected svg variant stored under %s, got %s", variant.Key, store.putKey)
	}
}

func TestGeneratorMissingOriginal(t *testing.T) {
	store := &fakeObjectStore{originals: map[string]fakeOriginal{}}

	gen, err := NewGenerator(store, "local", 3600, 75)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	_, err = gen.Generate(context.Background(), "img/missing.png", domain.Operations{Format: domain.FormatJPEG})
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected object not found error, got %v", err)
	}
}

func TestGeneratorRequiresSourceKey(t *testing.T) {
	gen, err := NewGenerator(&fakeObjectStore{}, "local", 3600, 75)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	if _, err := gen.Generate(context.Background(), "  /  ", domain.Operations{}); err == nil {
		t.Fatal("expected error for empty source key")
	}
}

func TestVariantServerTiming(t *testing.T) {
	v := Variant{FetchMS: 12, TransformMS: 34, StoreMS: 5}
	want := "img-fetch;dur=12, img-transform;dur=34, img-store;dur=5"
	if got := v.ServerTiming(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

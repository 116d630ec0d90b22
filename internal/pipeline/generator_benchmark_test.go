package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelgate/internal/domain"
)

func BenchmarkGenerateResize(b *testing.B) {
	store := &fakeObjectStore{originals: map[string]fakeOriginal{
		"bench/source.png": {data: benchmarkPNG(b, 1920, 1080), contentType: "image/png"},
	}}

	gen, err := NewGenerator(store, "local", 3600, 75)
	if err != nil {
		b.Fatalf("new generator: %v", err)
	}

	ops := domain.Operations{Format: domain.FormatJPEG, Quality: 82, Width: 640}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gen.Generate(context.Background(), "bench/source.png", ops); err != nil {
			b.Fatalf("generate: %v", err)
		}
	}
}

func BenchmarkGenerateExactResize(b *testing.B) {
	store := &fakeObjectStore{originals: map[string]fakeOriginal{
		"bench/source.png": {data: benchmarkPNG(b, 1920, 1080), contentType: "image/png"},
	}}

	gen, err := NewGenerator(store, "local", 3600, 75)
	if err != nil {
		b.Fatalf("new generator: %v", err)
	}

	ops := domain.Operations{Format: domain.FormatPNG, Width: 400, Height: 400}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gen.Generate(context.Background(), "bench/source.png", ops); err != nil {
			b.Fatalf("generate: %v", err)
		}
	}
}

func benchmarkPNG(b *testing.B, w, h int) []byte {
	b.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

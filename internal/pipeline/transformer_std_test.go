package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelgate/internal/domain"
)

func TestTransformResizePreservesAspect(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}
	src := buildTestPNG(t, 240, 120)

	data, format, width, height, err := transformer.Transform(context.Background(), src, domain.Operations{
		Format: domain.FormatJPEG,
		Width:  80,
	})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if format != domain.FormatJPEG {
		t.Fatalf("expected jpeg output format, got %s", format)
	}
	if width != 80 || height != 40 {
		t.Fatalf("expected 80x40 output, got %dx%d", width, height)
	}

	decoded, decodedFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decodedFormat != "jpeg" {
		t.Fatalf("expected jpeg bytes, got %s", decodedFormat)
	}
	if got := decoded.Bounds().Dx(); got != 80 {
		t.Fatalf("expected decoded width 80, got %d", got)
	}
}

func TestTransformExactResizeIgnoresAspect(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}
	src := buildTestPNG(t, 240, 120)

	_, _, width, height, err := transformer.Transform(context.Background(), src, domain.Operations{
		Format: domain.FormatPNG,
		Width:  50,
		Height: 60,
	})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if width != 50 || height != 60 {
		t.Fatalf("expected 50x60 output, got %dx%d", width, height)
	}
}

func TestTransformKeepsSourceFormat(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}
	src := buildTestPNG(t, 32, 32)

	data, format, _, _, err := transformer.Transform(context.Background(), src, domain.Operations{})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if format != domain.FormatPNG {
		t.Fatalf("expected png output format, got %s", format)
	}

	_, decodedFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decodedFormat != "png" {
		t.Fatalf("expected png bytes, got %s", decodedFormat)
	}
}

func TestTransformWebPEncodeRequiresGovips(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}
	src := buildTestPNG(t, 32, 32)

	_, _, _, _, err := transformer.Transform(context.Background(), src, domain.Operations{Format: domain.FormatWebP})
	if !errors.Is(err, ErrRequiresGovips) {
		t.Fatalf("expected govips encoder error, got %v", err)
	}
}

func TestTransformRejectsGarbageInput(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}

	_, _, _, _, err := transformer.Transform(context.Background(), []byte("not an image"), domain.Operations{})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTransformCancelledContext(t *testing.T) {
	transformer := imagingTransformer{defaultQuality: 75}
	src := buildTestPNG(t, 32, 32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, _, err := transformer.Transform(ctx, src, domain.Operations{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

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
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

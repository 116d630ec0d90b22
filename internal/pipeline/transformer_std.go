package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

type imagingTransformer struct {
	defaultQuality int
}

func (t imagingTransformer) Transform(ctx context.Context, input []byte, ops domain.Operations) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode source image: %w", err)
	}

	oriented := autoOrient(src, input)
	resized := resizeImage(oriented, ops.Width, ops.Height)

	format := normalizeSourceFormat(srcFormat)
	if ops.Format != "" {
		format = normalizeOutputFormat(ops.Format)
	}

	output, err := encodeImage(resized, format, effectiveQuality(ops.Quality, t.defaultQuality))
	if err != nil {
		return nil, "", 0, 0, err
	}

	bounds := resized.Bounds()
	return output, format, bounds.Dx(), bounds.Dy(), nil
}

func autoOrient(src image.Image, raw []byte) image.Image {
	meta, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return src
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return src
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return src
	}

	switch orientation {
	case 2:
		return imaging.FlipH(src)
	case 3:
		return imaging.Rotate180(src)
	case 4:
		return imaging.FlipV(src)
	case 5:
		return imaging.Transpose(src)
	case 6:
		return imaging.Rotate270(src)
	case 7:
		return imaging.Transverse(src)
	case 8:
		return imaging.Rotate90(src)
	default:
		return src
	}
}

func resizeImage(src image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return src
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return imaging.Resize(src, width, height, imaging.Lanczos)
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatGIF:
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	case domain.FormatWebP, domain.FormatAVIF:
		return nil, fmt.Errorf("encode %s: %w", format, ErrRequiresGovips)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

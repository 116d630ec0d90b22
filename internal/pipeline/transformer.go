package pipeline

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelgate/internal/domain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrRequiresGovips    = errors.New("encoder requires govips build tag")
)

type Transformer interface {
	Transform(ctx context.Context, input []byte, ops domain.Operations) (data []byte, format string, width, height int, err error)
}

func normalizeSourceFormat(format string) string {
	switch format {
	case "jpg", "jpeg":
		return domain.FormatJPEG
	case "png":
		return domain.FormatPNG
	case "webp":
		return domain.FormatWebP
	case "gif":
		return domain.FormatGIF
	default:
		return domain.DefaultFormat
	}
}

func normalizeOutputFormat(format string) string {
	switch format {
	case domain.FormatJPEG, domain.FormatPNG, domain.FormatWebP, domain.FormatAVIF, domain.FormatGIF:
		return format
	default:
		return domain.DefaultFormat
	}
}

func effectiveQuality(requested, fallback int) int {
	if requested > 0 && requested <= domain.MaxQuality {
		return requested
	}
	if fallback > 0 && fallback <= domain.MaxQuality {
		return fallback
	}
	return domain.DefaultQuality
}

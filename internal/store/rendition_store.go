package store

import (
	"context"

	"github.com/dunamismax/pixelgate/internal/domain"
)

type RenditionStore interface {
	Record(ctx context.Context, rendition domain.Rendition) error
	Recent(ctx context.Context, limit int) ([]domain.Rendition, error)
}

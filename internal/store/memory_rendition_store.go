package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dunamismax/pixelgate/internal/domain"
)

type MemoryRenditionStore struct {
	mu         sync.RWMutex
	renditions map[string]domain.Rendition
}

func NewMemoryRenditionStore() *MemoryRenditionStore {
	return &MemoryRenditionStore{
		renditions: make(map[string]domain.Rendition),
	}
}

func (s *MemoryRenditionStore) Record(_ context.Context, rendition domain.Rendition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renditions[rendition.VariantKey] = rendition
	return nil
}

func (s *MemoryRenditionStore) Recent(_ context.Context, limit int) ([]domain.Rendition, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	all := make([]domain.Rendition, 0, len(s.renditions))
	for _, rendition := range s.renditions {
		all = append(all, rendition)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

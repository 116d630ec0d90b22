package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dunamismax/pixelgate/internal/domain"
)

func TestMemoryRenditionStoreUpsertsByVariantKey(t *testing.T) {
	s := NewMemoryRenditionStore()
	ctx := context.Background()

	first := domain.Rendition{
		VariantKey: "img/cat.png/format=webp,width=320",
		SourceKey:  "img/cat.png",
		Format:     domain.FormatWebP,
		Width:      320,
		Bytes:      1000,
		Trigger:    domain.TriggerPrewarm,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("record rendition: %v", err)
	}

	second := first
	second.Bytes = 2000
	second.Trigger = domain.TriggerOrigin
	if err := s.Record(ctx, second); err != nil {
		t.Fatalf("record rendition again: %v", err)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent renditions: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected single rendition after upsert, got %d", len(recent))
	}
	if recent[0].Bytes != 2000 || recent[0].Trigger != domain.TriggerOrigin {
		t.Fatalf("expected latest values, got %+v", recent[0])
	}
}

func TestMemoryRenditionStoreRecentOrdersAndLimits(t *testing.T) {
	s := NewMemoryRenditionStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		rendition := domain.Rendition{
			VariantKey: fmt.Sprintf("img/cat.png/format=jpeg,width=%d", 100+i),
			SourceKey:  "img/cat.png",
			Format:     domain.FormatJPEG,
			Width:      100 + i,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Record(ctx, rendition); err != nil {
			t.Fatalf("record rendition %d: %v", i, err)
		}
	}

	recent, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent renditions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 renditions, got %d", len(recent))
	}
	if !recent[0].CreatedAt.After(recent[1].CreatedAt) || !recent[1].CreatedAt.After(recent[2].CreatedAt) {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}
}

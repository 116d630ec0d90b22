package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/pixelgate/internal/domain"
)

func TestPrewarmTaskRoundTrip(t *testing.T) {
	payload := PrewarmPayload{
		SourceKey: "img/cat.png",
		Operations: domain.Operations{
			Format:  domain.FormatWebP,
			Quality: 75,
			Width:   640,
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewPrewarmTask(payload)
	if err != nil {
		t.Fatalf("NewPrewarmTask returned error: %v", err)
	}
	if task.Type() != TypePrewarmVariant {
		t.Fatalf("expected task type %q, got %q", TypePrewarmVariant, task.Type())
	}

	parsed, err := ParsePrewarmPayload(task)
	if err != nil {
		t.Fatalf("ParsePrewarmPayload returned error: %v", err)
	}

	if parsed.SourceKey != payload.SourceKey {
		t.Fatalf("expected source_key %q, got %q", payload.SourceKey, parsed.SourceKey)
	}
	if parsed.Operations != payload.Operations {
		t.Fatalf("expected operations %+v, got %+v", payload.Operations, parsed.Operations)
	}
}

func TestPrewarmPayloadVariantKey(t *testing.T) {
	payload := PrewarmPayload{
		SourceKey:  "/img/cat.png",
		Operations: domain.Operations{Format: domain.FormatJPEG, Width: 320},
	}

	want := "img/cat.png/format=jpeg,width=320"
	if got := payload.VariantKey(); got != want {
		t.Fatalf("expected variant key %q, got %q", want, got)
	}
}

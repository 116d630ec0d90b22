package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/pixelgate/internal/domain"
	"github.com/hibiken/asynq"
)

const TypePrewarmVariant = "variant:prewarm"

type PrewarmPayload struct {
	SourceKey   string            `json:"source_key"`
	Operations  domain.Operations `json:"operations"`
	RequestedAt time.Time         `json:"requested_at"`
}

func (p PrewarmPayload) VariantKey() string {
	return p.Operations.VariantKey(p.SourceKey)
}

func NewPrewarmTask(payload PrewarmPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal prewarm payload: %w", err)
	}
	return asynq.NewTask(TypePrewarmVariant, body), nil
}

func ParsePrewarmPayload(task *asynq.Task) (PrewarmPayload, error) {
	var payload PrewarmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PrewarmPayload{}, fmt.Errorf("unmarshal prewarm payload: %w", err)
	}
	return payload, nil
}

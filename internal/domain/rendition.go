package domain

import "time"

const (
	TriggerOrigin  = "origin"
	TriggerPrewarm = "prewarm"
)

type Rendition struct {
	VariantKey string    `json:"variant_key"`
	SourceKey  string    `json:"source_key"`
	Operations string    `json:"operations"`
	Format     string    `json:"format"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Trigger    string    `json:"trigger"`
	CreatedAt  time.Time `json:"created_at"`
}

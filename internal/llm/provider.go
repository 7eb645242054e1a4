package llm

import (
	"context"

	"github.com/pkarpov/studytutor/internal/model"
)

// Request is one prompt exchange with a generation backend. Text material is
// already inlined into Prompt by the caller; Attachment carries binary
// material only.
type Request struct {
	System     string
	Prompt     string
	Attachment *model.Material
	Schema     *Schema // non-nil requests structured JSON output
}

// Schema declares the structured-output shape for a request, in the
// generation service's response-schema dialect.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Provider performs one completion against a concrete backend. The retry
// policy, if any, lives inside the provider.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

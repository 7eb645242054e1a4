package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/pkarpov/studytutor/internal/model"
)

func TestOpenAIRejectsNonImageAttachment(t *testing.T) {
	p := newOpenAIProvider("", "key", "model")

	_, err := p.Complete(context.Background(), Request{
		Prompt: "Make a quiz.",
		Attachment: &model.Material{
			MIMEType: model.MIMEPDF,
			Data:     "cGRm",
		},
	})
	if err == nil {
		t.Fatal("expected an error for a PDF attachment")
	}
	if !strings.Contains(err.Error(), model.MIMEPDF) {
		t.Errorf("error should name the rejected type: %v", err)
	}
}

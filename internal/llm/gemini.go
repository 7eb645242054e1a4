package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkarpov/studytutor/internal/httpx"
)

// DefaultGeminiEndpoint is the hosted generation service base URL.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider speaks the generateContent wire protocol through the
// retrying executor.
type geminiProvider struct {
	exec     *httpx.Executor
	endpoint string
	model    string
	key      string
}

type generateContentRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *geminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	parts := []geminiPart{{Text: req.Prompt}}
	if req.Attachment != nil {
		parts = append(parts, geminiPart{InlineData: &inlineData{
			MimeType: req.Attachment.MIMEType,
			Data:     req.Attachment.Data,
		}})
	}

	gcr := generateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	if req.System != "" {
		gcr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Schema != nil {
		gcr.GenerationConfig = &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}

	body, err := json.Marshal(gcr)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.endpoint, "/")
	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		endpoint, p.model, url.QueryEscape(p.key))

	raw, err := p.exec.Execute(ctx, httpx.RequestDescriptor{
		Method: http.MethodPost,
		URL:    target,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
	if err != nil {
		return "", err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

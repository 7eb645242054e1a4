package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkarpov/studytutor/internal/httpx"
	"github.com/pkarpov/studytutor/internal/model"
)

func newGeminiTestProvider(t *testing.T, handler http.HandlerFunc) *geminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &geminiProvider{
		exec:     httpx.NewExecutor(httpx.WithMaxAttempts(1), httpx.WithBackoffBase(time.Millisecond)),
		endpoint: srv.URL,
		model:    "test-model",
		key:      "secret key",
	}
}

func candidateResponse(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGeminiWireFormat(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotBody map[string]any

	p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(candidateResponse("hello")))
	})

	out, err := p.Complete(context.Background(), Request{
		System: "You are a tutor.",
		Prompt: "Make a quiz.",
		Schema: &Schema{Type: "OBJECT", Properties: map[string]*Schema{"title": {Type: "STRING"}}},
		Attachment: &model.Material{
			MIMEType: model.MIMEPNG,
			Data:     "aW1hZ2U=",
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello" {
		t.Errorf("Complete = %q", out)
	}

	if gotPath != "/models/test-model:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret key" {
		t.Errorf("key not carried in query: %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}

	contents, ok := gotBody["contents"].([]any)
	if !ok || len(contents) != 1 {
		t.Fatalf("contents wrong: %v", gotBody["contents"])
	}
	content := contents[0].(map[string]any)
	if content["role"] != "user" {
		t.Errorf("role = %v", content["role"])
	}
	parts := content["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text part and inline data, got %d parts", len(parts))
	}
	if text := parts[0].(map[string]any)["text"]; text != "Make a quiz." {
		t.Errorf("text part = %v", text)
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != model.MIMEPNG || inline["data"] != "aW1hZ2U=" {
		t.Errorf("inline data wrong: %v", inline)
	}

	system := gotBody["systemInstruction"].(map[string]any)
	sysParts := system["parts"].([]any)
	if text := sysParts[0].(map[string]any)["text"]; text != "You are a tutor." {
		t.Errorf("system instruction = %v", text)
	}

	genCfg := gotBody["generationConfig"].(map[string]any)
	if genCfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", genCfg["responseMimeType"])
	}
	if _, ok := genCfg["responseSchema"]; !ok {
		t.Error("responseSchema missing")
	}
}

func TestGeminiOmitsOptionalFields(t *testing.T) {
	var gotBody map[string]any
	p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(candidateResponse("ok")))
	})

	if _, err := p.Complete(context.Background(), Request{Prompt: "Summarize."}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := gotBody["systemInstruction"]; ok {
		t.Error("systemInstruction should be omitted when empty")
	}
	if _, ok := gotBody["generationConfig"]; ok {
		t.Error("generationConfig should be omitted without a schema")
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no candidates", body: `{"candidates":[]}`},
		{name: "no parts", body: `{"candidates":[{"content":{"parts":[]}}]}`},
		{name: "empty text", body: `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := p.Complete(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("expected ErrEmptyResponse, got %v", err)
			}
		})
	}
}

func TestGeminiFatalStatusSurfacesTransportError(t *testing.T) {
	p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid schema"}}`))
	})

	_, err := p.Complete(context.Background(), Request{Prompt: "x"})
	var te *httpx.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusBadRequest || te.Message != "invalid schema" {
		t.Errorf("TransportError = %+v", te)
	}
}

func TestGeminiTrailingSlashEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(candidateResponse("ok")))
	}))
	t.Cleanup(srv.Close)

	p := &geminiProvider{
		exec:     httpx.NewExecutor(httpx.WithMaxAttempts(1)),
		endpoint: srv.URL + "/",
		model:    "m",
		key:      "k",
	}
	if _, err := p.Complete(context.Background(), Request{Prompt: "x"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotPath != "/models/m:generateContent" {
		t.Errorf("trailing slash not trimmed, path = %q", gotPath)
	}
}

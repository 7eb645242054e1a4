// Package llm builds generation requests for study-tutor tasks and parses
// the responses. It supports the hosted generateContent service (through the
// retrying executor) and OpenAI-compatible endpoints.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkarpov/studytutor/internal/httpx"
	"github.com/pkarpov/studytutor/internal/llm/prompts"
	"github.com/pkarpov/studytutor/internal/model"
)

// Config holds the generation-client settings. All fields come from the
// process configuration at startup.
type Config struct {
	Provider    string // "gemini" (default) or "openai"
	APIKey      string
	Model       string
	Endpoint    string // base URL; empty selects the provider default
	MaxAttempts int
}

// Client issues generation tasks against a configured provider.
type Client struct {
	provider Provider
}

// New creates a generation client. A missing credential is rejected here,
// not at the first call.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}

	switch cfg.Provider {
	case "", "gemini":
		if cfg.APIKey == "" {
			return nil, ErrMissingCredential
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultGeminiEndpoint
		}
		opts := []httpx.Option{}
		if cfg.MaxAttempts > 0 {
			opts = append(opts, httpx.WithMaxAttempts(cfg.MaxAttempts))
		}
		return &Client{provider: &geminiProvider{
			exec:     httpx.NewExecutor(opts...),
			endpoint: endpoint,
			model:    cfg.Model,
			key:      cfg.APIKey,
		}}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, ErrMissingCredential
		}
		return &Client{provider: newOpenAIProvider(cfg.Endpoint, cfg.APIKey, cfg.Model)}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewWithProvider wraps an existing provider. Tests use it with fakes.
func NewWithProvider(p Provider) *Client {
	return &Client{provider: p}
}

// GeneratedExam is the structured output of a multiple-choice create task,
// validated against the declared schema.
type GeneratedExam struct {
	Title     string              `json:"title"`
	Questions []GeneratedQuestion `json:"questions"`
}

// GeneratedQuestion is one raw generated question before label
// normalization.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// CreateExam generates a multiple-choice exam from the material. The caller
// renders the prompt; the client attaches the material, selects the system
// instruction, and declares a strict output schema. A parse failure is fatal
// for the call and is not retried.
func (c *Client) CreateExam(ctx context.Context, prompt string, mat *model.Material) (*GeneratedExam, error) {
	if mat == nil {
		return nil, ErrMaterialNotReady
	}

	system, err := prompts.System(mat.IsImage())
	if err != nil {
		return nil, fmt.Errorf("load system instruction: %w", err)
	}

	raw, err := c.provider.Complete(ctx, c.request(system, prompt, mat, examSchema()))
	if err != nil {
		return nil, err
	}
	slog.Debug("structured generation response", "raw", raw)

	return parseExam(raw)
}

// CreateText generates a free-text result: an open-response exam, a summary,
// key points, an analogy, or an answer to a free-form question. Material may
// be nil; whether a task requires material is the caller's rule.
func (c *Client) CreateText(ctx context.Context, prompt string, mat *model.Material) (string, error) {
	system, err := prompts.System(mat != nil && mat.IsImage())
	if err != nil {
		return "", fmt.Errorf("load system instruction: %w", err)
	}

	return c.provider.Complete(ctx, c.request(system, prompt, mat, nil))
}

// GradeSubmission asks the model to grade an open-response submission. The
// payload carries the original challenge text, the recorded answer, and a
// bounded slice of the study material for context. The response is free
// text, not structured.
func (c *Client) GradeSubmission(ctx context.Context, challenge, answer, contextText string) (string, error) {
	prompt, err := prompts.BuildGrade(prompts.GradeData{
		Challenge: challenge,
		Answer:    answer,
		Context:   contextText,
	})
	if err != nil {
		return "", fmt.Errorf("build grading prompt: %w", err)
	}
	system, err := prompts.GradeSystem()
	if err != nil {
		return "", fmt.Errorf("load grading instruction: %w", err)
	}

	return c.provider.Complete(ctx, Request{System: system, Prompt: prompt})
}

func (c *Client) request(system, prompt string, mat *model.Material, schema *Schema) Request {
	req := Request{System: system, Prompt: prompt, Schema: schema}
	if mat != nil && !mat.IsText() {
		req.Attachment = mat
	}
	return req
}

// examSchema declares the structured exam shape. The configured option count
// is enforced by the prompt and re-validated in parseExam.
func examSchema() *Schema {
	return &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"title": {Type: "STRING"},
			"questions": {
				Type: "ARRAY",
				Items: &Schema{
					Type: "OBJECT",
					Properties: map[string]*Schema{
						"question":       {Type: "STRING"},
						"options":        {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
						"correct_answer": {Type: "STRING"},
					},
					Required: []string{"question", "options", "correct_answer"},
				},
			},
		},
		Required: []string{"title", "questions"},
	}
}

func parseExam(raw string) (*GeneratedExam, error) {
	var exam GeneratedExam
	if err := json.Unmarshal([]byte(extractJSON(raw)), &exam); err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: err}
	}
	if len(exam.Questions) == 0 {
		return nil, &MalformedOutputError{Raw: raw, Err: errors.New("exam has no questions")}
	}
	for i, q := range exam.Questions {
		if q.Question == "" {
			return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("question %d has no text", i+1)}
		}
		if len(q.Options) < 2 {
			return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("question %d has %d options", i+1, len(q.Options))}
		}
		if q.CorrectAnswer == "" {
			return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("question %d has no correct answer", i+1)}
		}
	}
	return &exam, nil
}

// extractJSON strips a markdown code fence when the model wraps its JSON in
// one.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	start := 3
	if idx := strings.Index(content[start:], "\n"); idx != -1 {
		start += idx + 1
	}
	if end := strings.Index(content[start:], "```"); end != -1 {
		content = content[start : start+end]
	} else {
		content = content[start:]
	}
	return strings.TrimSpace(content)
}

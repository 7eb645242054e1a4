package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiProvider targets OpenAI-compatible endpoints (including local Ollama
// deployments). Structured tasks use the JSON response format; the declared
// schema is enforced at parse time by the Client.
type openaiProvider struct {
	api   *openai.Client
	model string
}

func newOpenAIProvider(baseURL, apiKey, modelName string) *openaiProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openaiProvider{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

func (p *openaiProvider) Complete(ctx context.Context, req Request) (string, error) {
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Attachment != nil {
		if !req.Attachment.IsImage() {
			return "", fmt.Errorf("openai provider: unsupported attachment type %s", req.Attachment.MIMEType)
		}
		userMsg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", req.Attachment.MIMEType, req.Attachment.Data),
				},
			},
		}
	} else {
		userMsg.Content = req.Prompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			userMsg,
		},
		Temperature: 0.3,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

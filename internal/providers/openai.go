package providers

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aigoflow/multichat-service/internal/prompt"
)

// OpenAIProvider talks to OpenAI and to OpenAI-compatible APIs such as xAI's Grok
type OpenAIProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIProvider(name, baseURL string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		name:       name,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := openai.ChatMessageRoleAssistant
		if t.Role == prompt.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("response contained no choices")
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &Completion{
		Text:      resp.Choices[0].Message.Content,
		Model:     model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when the config names no model.
const DefaultAnthropicModel = "claude-haiku-4-5"

// AnthropicProvider implements the Provider interface for Claude and
// Anthropic-compatible APIs.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic creates a new Anthropic provider with a static API key.
// A non-empty baseURL targets an Anthropic-compatible endpoint.
func NewAnthropic(apiKey, model, baseURL string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)

	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicProvider{
		client:  &client,
		model:   model,
		timeout: 30 * time.Second,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return nil, &ProviderError{Message: "empty conversation", Provider: p.Name()}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params,
		option.WithRequestTimeout(p.timeout),
	)
	if err != nil {
		perr := &ProviderError{Message: err.Error(), Provider: p.Name()}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.StatusCode
		}
		return nil, perr
	}

	var content string
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += textBlock.Text
		}
	}
	if content == "" {
		return nil, &ProviderError{
			Message:  fmt.Sprintf("no text in response (stop_reason=%s)", message.StopReason),
			Provider: p.Name(),
		}
	}

	return &CompletionResponse{
		Content:      content,
		Model:        string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		StopReason:   string(message.StopReason),
	}, nil
}

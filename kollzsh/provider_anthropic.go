package kollzsh

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1024

type anthropicProvider struct {
	client anthropic.Client
}

func newAnthropicProvider(cfg Config) (providerClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("kollzsh: Anthropic API key is required to use ProviderAnthropic")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...)}, nil
}

// Chat sends one Messages API call. The schema contract has no native
// response format here, so it relies on the prompt's JSON instructions.
func (p *anthropicProvider) Chat(ctx context.Context, req Request) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
	}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	if req.Contract.Kind == ContractToolCall {
		t := req.Contract.Tool
		params.Tools = []anthropic.ToolUnionParam{{OfTool: toAnthropicTool(t)}}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: t.Name},
		}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}

	reply := Reply{}
	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				text = append(text, block.Text)
			}
		case "tool_use":
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: argumentsText(block.Input),
			})
		}
	}
	reply.Content = strings.Join(text, "\n")
	if msg.Usage.InputTokens > 0 {
		pt := int(msg.Usage.InputTokens)
		reply.PromptTokens = &pt
	}
	if msg.Usage.OutputTokens > 0 {
		ct := int(msg.Usage.OutputTokens)
		reply.CompletionTokens = &ct
	}
	return reply, nil
}

func toAnthropicTool(t Tool) *anthropic.ToolParam {
	schema := anthropic.ToolInputSchemaParam{Properties: t.ParametersSchema["properties"]}
	if required, ok := t.ParametersSchema["required"].([]string); ok {
		schema.Required = required
	}
	return &anthropic.ToolParam{
		Name:        t.Name,
		Description: anthropic.String(t.Description),
		InputSchema: schema,
	}
}

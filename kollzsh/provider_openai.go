package kollzsh

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// compatAPIKey is sent when no key is configured; local OpenAI-compatible
// servers (Ollama /v1, vLLM) accept any bearer token.
const compatAPIKey = "ollama"

type openAIProvider struct {
	client *openai.Client
}

func newOpenAIProvider(cfg Config) (providerClient, error) {
	key := cfg.APIKey
	if key == "" {
		key = compatAPIKey
	}
	oc := openai.DefaultConfig(key)
	if base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	oc.HTTPClient = withKeepAlive(cfg.httpClient(), cfg.KeepAlive)
	return &openAIProvider{client: openai.NewClientWithConfig(oc)}, nil
}

func (p *openAIProvider) Chat(ctx context.Context, req Request) (Reply, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toOpenAIRequest(req))
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("kollzsh: no choices in response")
	}
	return toOpenAIReply(resp), nil
}

func toOpenAIRequest(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   req.Stream,
	}

	switch req.Contract.Kind {
	case ContractToolCall:
		t := req.Contract.Tool
		out.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			},
		}}
	case ContractSchema:
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   commandSchemaName,
				Schema: rawJSONSchema{m: req.Contract.Schema},
			},
		}
	}
	return out
}

func toOpenAIReply(resp openai.ChatCompletionResponse) Reply {
	msg := resp.Choices[0].Message
	reply := Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: argumentsText(json.RawMessage(tc.Function.Arguments)),
		})
	}
	if resp.Usage.PromptTokens > 0 {
		pt := resp.Usage.PromptTokens
		reply.PromptTokens = &pt
	}
	if resp.Usage.CompletionTokens > 0 {
		ct := resp.Usage.CompletionTokens
		reply.CompletionTokens = &ct
	}
	return reply
}

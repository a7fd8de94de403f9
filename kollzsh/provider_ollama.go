package kollzsh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// ollamaProvider talks to Ollama's native /api/chat endpoint, the only one
// that honors keep_alive, tools and a JSON-schema format together.
type ollamaProvider struct {
	client *api.Client
}

func newOllamaProvider(cfg Config) (providerClient, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, &ConfigError{Missing: []string{"backend url (KOLLZSH_URL)"}}
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, &ConfigError{Invalid: []string{fmt.Sprintf("backend url %q", base)}}
	}
	return &ollamaProvider{client: api.NewClient(u, cfg.httpClient())}, nil
}

func (p *ollamaProvider) Chat(ctx context.Context, req Request) (Reply, error) {
	chatReq, err := toOllamaRequest(req)
	if err != nil {
		return Reply{}, err
	}

	var chat api.ChatResponse
	err = p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chat = resp
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return Reply{}, fmt.Errorf("kollzsh: ollama API error (status %d): %s", se.StatusCode, strings.TrimSpace(se.ErrorMessage))
		}
		return Reply{}, fmt.Errorf("kollzsh: error calling ollama API: %w (is Ollama running?)", err)
	}

	reply := Reply{Content: chat.Message.Content}
	for _, tc := range chat.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return Reply{}, fmt.Errorf("kollzsh: encode tool arguments: %w", err)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: argumentsText(args),
		})
	}
	if chat.PromptEvalCount > 0 {
		pt := chat.PromptEvalCount
		reply.PromptTokens = &pt
	}
	if chat.EvalCount > 0 {
		ct := chat.EvalCount
		reply.CompletionTokens = &ct
	}
	return reply, nil
}

func toOllamaRequest(req Request) (*api.ChatRequest, error) {
	stream := req.Stream
	out := &api.ChatRequest{
		Model:  req.Model,
		Stream: &stream,
	}
	keepAlive, err := parseKeepAlive(req.KeepAlive)
	if err != nil {
		return nil, err
	}
	out.KeepAlive = keepAlive
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	switch req.Contract.Kind {
	case ContractToolCall:
		tool, err := toOllamaTool(req.Contract.Tool)
		if err != nil {
			return nil, err
		}
		out.Tools = []api.Tool{tool}
	case ContractSchema:
		format, err := json.Marshal(req.Contract.Schema)
		if err != nil {
			return nil, fmt.Errorf("kollzsh: marshal format schema: %w", err)
		}
		out.Format = format
	}
	return out, nil
}

// toOllamaTool goes through the tool's JSON form so the parameters schema
// lands in api.Tool without hand-building its property types.
func toOllamaTool(t Tool) (api.Tool, error) {
	data, err := json.Marshal(map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.ParametersSchema,
		},
	})
	if err != nil {
		return api.Tool{}, fmt.Errorf("kollzsh: marshal tool %s: %w", t.Name, err)
	}
	var tool api.Tool
	if err := json.Unmarshal(data, &tool); err != nil {
		return api.Tool{}, fmt.Errorf("kollzsh: convert tool %s: %w", t.Name, err)
	}
	return tool, nil
}

// parseKeepAlive reads whole seconds ("3600", "-1") or a Go duration
// ("5m", "1h30m"). Any negative value keeps the model loaded indefinitely.
func parseKeepAlive(s string) (*api.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return &api.Duration{Duration: -1}, nil
		}
		return &api.Duration{Duration: time.Duration(n) * time.Second}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("kollzsh: invalid keep-alive %q", s)
	}
	if d < 0 {
		d = -1
	}
	return &api.Duration{Duration: d}, nil
}

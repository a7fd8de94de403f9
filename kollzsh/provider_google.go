package kollzsh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type googleProvider struct {
	client *genai.Client
}

func newGoogleProvider(ctx context.Context, cfg Config) (providerClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("kollzsh: Google API key is required to use ProviderGoogle")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(cfg.BaseURL),
		},
	})
	if err != nil {
		return nil, err
	}
	return &googleProvider{client: gc}, nil
}

func (p *googleProvider) Chat(ctx context.Context, req Request) (Reply, error) {
	cfg := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	switch req.Contract.Kind {
	case ContractToolCall:
		t := req.Contract.Tool
		cfg.Tools = toGenAITools([]Tool{t})
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{t.Name},
			},
		}
	case ContractSchema:
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Contract.Schema
	}

	res, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return Reply{}, err
	}
	return toReplyFromGenAI(res)
}

func toGenAITools(tools []Tool) []*genai.Tool {
	out := make([]*genai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:                 t.Name,
					Description:          t.Description,
					ParametersJsonSchema: t.ParametersSchema,
				},
			},
		})
	}
	return out
}

func toReplyFromGenAI(res *genai.GenerateContentResponse) (Reply, error) {
	reply := Reply{}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return reply, nil
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part.Text == "" || part.Thought {
			continue
		}
		if reply.Content == "" {
			reply.Content = part.Text
		} else {
			reply.Content += "\n" + part.Text
		}
	}
	for _, fc := range res.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return Reply{}, fmt.Errorf("kollzsh: marshal function call args for %s: %w", fc.Name, err)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: argumentsText(args),
		})
	}

	if res.UsageMetadata != nil {
		if res.UsageMetadata.PromptTokenCount > 0 {
			pt := int(res.UsageMetadata.PromptTokenCount)
			reply.PromptTokens = &pt
		}
		if res.UsageMetadata.CandidatesTokenCount > 0 {
			ct := int(res.UsageMetadata.CandidatesTokenCount)
			reply.CompletionTokens = &ct
		}
	}
	return reply, nil
}

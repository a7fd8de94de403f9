package kollzsh

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func anthropicServer(t *testing.T, status int, reply string, inspect func(r *http.Request, body string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if inspect != nil {
			inspect(r, string(body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func anthropicConfig(url string) Config {
	return Config{
		Provider: ProviderAnthropic,
		Contract: ContractToolCall,
		Model:    "claude-sonnet-4-5",
		APIKey:   "sk-ant-test",
		BaseURL:  url,
	}
}

func TestAnthropicProvider_ToolContract(t *testing.T) {
	var (
		path string
		key  string
		sent string
	)
	srv := anthropicServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Listing files."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_shell_command_tool", "input": {"commands": ["ls -la", "$ pwd"]}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 21, "output_tokens": 8}
	}`, func(r *http.Request, body string) {
		path, key, sent = r.URL.Path, r.Header.Get("X-Api-Key"), body
	})

	c, err := New(anthropicConfig(srv.URL))
	require.NoError(t, err)
	out := c.Produce(context.Background(), "list files")
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"ls -la", "pwd"}, out.Commands)

	assert.Equal(t, "/v1/messages", path)
	assert.Equal(t, "sk-ant-test", key)
	assert.Equal(t, "claude-sonnet-4-5", gjson.Get(sent, "model").String())
	assert.Equal(t, int64(anthropicMaxTokens), gjson.Get(sent, "max_tokens").Int())
	assert.Equal(t, ShellCommandToolName, gjson.Get(sent, "tools.0.name").String())
	assert.Equal(t, "object", gjson.Get(sent, "tools.0.input_schema.type").String())
	assert.Equal(t, "commands", gjson.Get(sent, "tools.0.input_schema.required.0").String())
	assert.Equal(t, "array", gjson.Get(sent, "tools.0.input_schema.properties.commands.type").String())
	assert.Equal(t, "tool", gjson.Get(sent, "tool_choice.type").String())
	assert.Equal(t, ShellCommandToolName, gjson.Get(sent, "tool_choice.name").String())
	assert.Equal(t, "user", gjson.Get(sent, "messages.0.role").String())
}

func TestAnthropicProvider_SchemaContract(t *testing.T) {
	var sent string
	srv := anthropicServer(t, http.StatusOK, `{
		"id": "msg_2",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "`+"```json\\n{\\\"commands\\\": [{\\\"command\\\": \\\"df -h\\\"}]}\\n```"+`"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 30, "output_tokens": 12}
	}`, func(_ *http.Request, body string) { sent = body })

	cfg := anthropicConfig(srv.URL)
	cfg.Contract = ContractSchema
	p, err := newAnthropicProvider(cfg)
	require.NoError(t, err)

	reply, err := p.Chat(context.Background(), BuildRequest(cfg, "disk usage", MustContract(ContractSchema)))
	require.NoError(t, err)
	assert.False(t, gjson.Get(sent, "tools").Exists())
	assert.False(t, gjson.Get(sent, "tool_choice").Exists())
	assert.Contains(t, reply.Content, "```json")
	assert.Equal(t, 30, *reply.PromptTokens)
	assert.Equal(t, 12, *reply.CompletionTokens)

	cmds, err := ParseReply(reply, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"df -h"}, cmds)
}

func TestAnthropicProvider_ErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := anthropicServer(t, http.StatusInternalServerError,
		`{"type": "error", "error": {"type": "api_error", "message": "overloaded"}}`,
		func(*http.Request, string) { calls++ })

	c, err := New(anthropicConfig(srv.URL))
	require.NoError(t, err)
	out := c.Produce(context.Background(), "list files")

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrBackend)
	assert.Equal(t, 1, calls)
}

func TestNew_AnthropicKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(Config{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5", DetectEnv: true})
	assert.True(t, IsConfigError(err))

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	c, err := New(Config{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5", DetectEnv: true})
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", c.cfg.APIKey)
}

package kollzsh

import (
	"encoding/json"
)

// Provider identifies which backend answers the query.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderAnthropic Provider = "anthropic"
)

// ContractKind selects how the model is asked to shape its answer.
type ContractKind int

const (
	// ContractToolCall declares a callable function; the model answers by
	// invoking it with a list of commands.
	ContractToolCall ContractKind = iota
	// ContractSchema declares a JSON schema; the model answers with a JSON
	// object carrying a "commands" list of {command, description} entries.
	ContractSchema
)

func (k ContractKind) String() string {
	switch k {
	case ContractToolCall:
		return "tool"
	case ContractSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Tool declares a callable function the model may invoke.
type Tool struct {
	// Name is the function name referenced by the model.
	Name string
	// Description helps the model understand when to call this tool.
	Description string
	// ParametersSchema is a JSON Schema object describing the arguments.
	ParametersSchema map[string]any
}

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat entry sent to the backend.
type Message struct {
	Role    Role
	Content string
}

// ToolCall is one structured tool invocation found in a reply.
type ToolCall struct {
	ID   string
	Name string
	// Arguments holds the raw JSON text of the call arguments.
	Arguments string
}

// Reply is the provider-agnostic backend response. Either part may be empty.
type Reply struct {
	ToolCalls []ToolCall
	Content   string

	PromptTokens     *int
	CompletionTokens *int
}

// Empty reports whether the reply carries neither tool calls nor content.
func (r Reply) Empty() bool {
	return len(r.ToolCalls) == 0 && r.Content == ""
}

// rawJSONSchema is a thin json.Marshaler wrapper to pass generic schemas
// into providers that take custom types implementing MarshalJSON.
type rawJSONSchema struct {
	m map[string]any
}

func (r rawJSONSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.m)
}

package kollzsh

import (
	"fmt"
)

const (
	promptTemplate = "Generate shell commands for the following task: %s. Provide multiple relevant commands if available."

	schemaInstructions = "Respond only with a JSON object inside a markdown code block that starts with ```json and ends with ```. " +
		"The object must have a top-level \"commands\" key holding a list of objects, " +
		"each with a \"command\" string and a short \"description\" string."
)

// Request is the single outbound call made for a query.
type Request struct {
	Model     string
	KeepAlive string
	Messages  []Message
	// Stream is always false; replies are read whole.
	Stream   bool
	Contract Contract
}

// BuildRequest frames query for shell command generation and attaches
// contract. It has no side effects.
func BuildRequest(cfg Config, query string, contract Contract) Request {
	return Request{
		Model:     cfg.Model,
		KeepAlive: cfg.KeepAlive,
		Messages:  []Message{{Role: RoleUser, Content: FormatPrompt(query, contract.Kind)}},
		Stream:    false,
		Contract:  contract,
	}
}

// FormatPrompt embeds query in the instruction template for kind.
func FormatPrompt(query string, kind ContractKind) string {
	prompt := fmt.Sprintf(promptTemplate, query)
	if kind == ContractSchema {
		prompt += " " + schemaInstructions
	}
	return prompt
}

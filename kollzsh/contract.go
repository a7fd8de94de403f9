package kollzsh

import (
	"fmt"
)

// ShellCommandToolName is the function the tool-call contract declares.
const ShellCommandToolName = "get_shell_command_tool"

const (
	shellCommandToolDescription = "Return shell commands that accomplish the user's task."
	commandSchemaName           = "shell_commands"
)

// Contract is the output contract attached to a request. Exactly one of Tool
// or Schema is meaningful, chosen by Kind.
type Contract struct {
	Kind ContractKind

	// Tool is declared to the model for ContractToolCall.
	Tool Tool
	// Schema constrains the reply for ContractSchema.
	Schema map[string]any

	// content validates free-text replies under either kind.
	content *Validator
}

// NewContract builds the contract for kind.
func NewContract(kind ContractKind) (Contract, error) {
	envelope, err := SchemaFor(commandEnvelope{})
	if err != nil {
		return Contract{}, err
	}
	v, err := envelopeValidator()
	if err != nil {
		return Contract{}, err
	}

	c := Contract{Kind: kind, content: v}
	switch kind {
	case ContractToolCall:
		params, err := SchemaFor(shellCommandArgs{})
		if err != nil {
			return Contract{}, err
		}
		c.Tool = Tool{
			Name:             ShellCommandToolName,
			Description:      shellCommandToolDescription,
			ParametersSchema: params,
		}
	case ContractSchema:
		c.Schema = envelope
	default:
		return Contract{}, fmt.Errorf("kollzsh: unknown contract %v", kind)
	}
	return c, nil
}

// MustContract is like NewContract but panics on error. The built-in schemas
// are static, so this only fails on a programming error.
func MustContract(kind ContractKind) Contract {
	c, err := NewContract(kind)
	if err != nil {
		panic(err)
	}
	return c
}

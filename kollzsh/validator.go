package kollzsh

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks decoded reply values against a contract's JSON schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewValidator compiles schema once so every reply is checked against the
// same object that was declared to the model.
func NewValidator(name string, schema map[string]any) (*Validator, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("kollzsh: marshal schema %s: %w", name, err)
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("kollzsh: compile schema %s: %w", name, err)
	}
	return &Validator{name: name, schema: compiled}, nil
}

// Validate checks v, a value produced by json.Unmarshal into any.
// A mismatch is reported as ErrShape.
func (v *Validator) Validate(value any) error {
	if err := v.schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrShape, v.name, err)
	}
	return nil
}

package kollzsh

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

var jsonFenceRe = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

var envelopeValidator = sync.OnceValues(func() (*Validator, error) {
	schema, err := SchemaFor(commandEnvelope{})
	if err != nil {
		return nil, err
	}
	return NewValidator(commandSchemaName, schema)
})

// ParseReply extracts the command list from reply under contract.
//
// With the tool-call contract, the first invocation of the contract's tool
// carrying a non-empty "commands" list wins; invocations of other tools, or
// with missing, empty or malformed commands, are skipped and the content is
// parsed instead. With the schema contract only the content is read.
//
// Every failure is logged and returned alongside an empty list; callers that
// only want commands can ignore the error.
func ParseReply(reply Reply, contract Contract, logger Logger) ([]string, error) {
	logger = loggerOrDiscard(logger)

	if reply.Empty() {
		logger.Warn("No valid commands found in response", "error", ErrEmptyReply)
		return nil, ErrEmptyReply
	}

	if contract.Kind == ContractToolCall && len(reply.ToolCalls) > 0 {
		if cmds, ok := parseToolCalls(reply.ToolCalls, contract.Tool.Name, logger); ok {
			logger.Debug("Successfully extracted commands", "source", "tool_call", "data", cmds)
			return cmds, nil
		}
		if reply.Content == "" {
			err := fmt.Errorf("%w: no usable %s invocation and no content", ErrShape, contract.Tool.Name)
			logger.Warn("No valid commands found in response", "error", err)
			return nil, err
		}
		logger.Debug("No usable tool calls found, falling back to content parsing")
	}

	return ParseContent(reply.Content, contract, logger)
}

func parseToolCalls(calls []ToolCall, want string, logger Logger) ([]string, bool) {
	if want == "" {
		want = ShellCommandToolName
	}
	for i, call := range calls {
		if call.Name != want {
			logger.Debug("Skipping tool call", "index", i, "name", call.Name)
			continue
		}
		raw, err := commandsFromArguments(call.Arguments)
		if err != nil {
			logger.Warn("Error accessing tool call arguments", "index", i, "error", err, "data", call.Arguments)
			continue
		}
		cmds := normalizeAll(raw, logger)
		if len(cmds) == 0 {
			logger.Debug("Tool call carried no commands", "index", i)
			continue
		}
		return cmds, true
	}
	return nil, false
}

// commandsFromArguments reads the "commands" field of a tool invocation.
// Besides a list of strings it accepts a JSON-encoded list inside a string,
// and a plain string as a single command.
func commandsFromArguments(args string) ([]string, error) {
	if !gjson.Valid(args) {
		return nil, fmt.Errorf("%w: tool arguments are not valid JSON", ErrParse)
	}
	field := gjson.Get(args, "commands")
	switch {
	case !field.Exists():
		return nil, fmt.Errorf("%w: tool arguments have no commands field", ErrShape)
	case field.IsArray():
		return stringElements(field)
	case field.Type == gjson.String:
		inner := strings.TrimSpace(field.Str)
		if gjson.Valid(inner) {
			if parsed := gjson.Parse(inner); parsed.IsArray() {
				return stringElements(parsed)
			}
		}
		return []string{field.Str}, nil
	default:
		return nil, fmt.Errorf("%w: tool commands field is %s, not a list", ErrShape, field.Type)
	}
}

func stringElements(list gjson.Result) ([]string, error) {
	var (
		out []string
		err error
	)
	list.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.String {
			err = fmt.Errorf("%w: command element is %s, not a string", ErrShape, v.Type)
			return false
		}
		out = append(out, v.Str)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseContent parses free-text content expected to hold the schema
// contract's JSON object, fenced in ```json or bare.
func ParseContent(content string, contract Contract, logger Logger) ([]string, error) {
	logger = loggerOrDiscard(logger)

	text := FlattenContent(ExtractJSONFence(content))
	logger.Debug("Normalized content", "data", text)
	if text == "" {
		logger.Warn("No valid commands found in response", "error", ErrEmptyReply)
		return nil, ErrEmptyReply
	}

	value, err := decodeJSON(text)
	if err != nil && strings.Contains(text, `\"`) {
		retry := unescapeQuotes(text)
		if v, retryErr := decodeJSON(retry); retryErr == nil {
			logger.Debug("Recovered over-escaped content", "data", retry)
			value, text, err = v, retry, nil
		}
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrParse, err)
		logger.Warn("Error parsing commands", "error", err, "data", text)
		return nil, err
	}

	validator := contract.content
	if validator == nil {
		if validator, err = envelopeValidator(); err != nil {
			logger.Warn("Error parsing commands", "error", err)
			return nil, err
		}
	}
	if err := validator.Validate(value); err != nil {
		logger.Warn("Parsed content is not a command list", "error", err, "data", text)
		return nil, err
	}

	var env commandEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		err = fmt.Errorf("%w: %v", ErrShape, err)
		logger.Warn("Parsed content is not a command list", "error", err, "data", text)
		return nil, err
	}

	raw := make([]string, 0, len(env.Commands))
	for _, e := range env.Commands {
		raw = append(raw, e.Command)
	}
	cmds := normalizeAll(raw, logger)
	logger.Debug("Successfully parsed commands", "source", "content", "data", cmds)
	return cmds, nil
}

// ExtractJSONFence returns the body of the first ```json block in content,
// or content unchanged when there is none.
func ExtractJSONFence(content string) string {
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return content
}

func decodeJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeAll normalizes each command in order, dropping ones that
// normalize to nothing.
func normalizeAll(raw []string, logger Logger) []string {
	out := make([]string, 0, len(raw))
	for i, r := range raw {
		c := Normalize(r)
		if c == "" {
			logger.Debug("Skipping blank command", "index", i)
			continue
		}
		out = append(out, c)
	}
	return out
}

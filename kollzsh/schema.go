package kollzsh

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// shellCommandArgs is the argument shape of the shell command tool.
type shellCommandArgs struct {
	Commands []string `json:"commands" description:"Shell commands that accomplish the task, most relevant first"`
}

// commandEntry is one element of the schema contract's "commands" list.
type commandEntry struct {
	Command     string `json:"command" description:"A complete shell command"`
	Description string `json:"description,omitempty" description:"What the command does"`
}

// commandEnvelope is the top-level object of the schema contract.
type commandEnvelope struct {
	Commands []commandEntry `json:"commands" description:"Shell commands that accomplish the task, most relevant first"`
}

// SchemaFor builds a JSON schema object from a Go struct value using its
// json and description tags. Fields without omitempty are required. Only
// string, slice, array and struct fields are supported.
func SchemaFor(v any) (map[string]any, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New("kollzsh: nil value has no schema")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	schema, err := structSchema(t)
	if err != nil {
		return nil, fmt.Errorf("kollzsh: schema for %s: %w", t, err)
	}
	return schema, nil
}

func structSchema(t reflect.Type) (map[string]any, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}

	properties := make(map[string]any)
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}
		if !slices.Contains(strings.Split(opts, ","), "omitempty") {
			required = append(required, name)
		}

		fs, err := fieldSchema(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), field.Name, err)
		}
		if desc := field.Tag.Get("description"); desc != "" {
			fs["description"] = desc
		}
		properties[name] = fs
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

func fieldSchema(t reflect.Type) (map[string]any, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Slice, reflect.Array:
		items, err := fieldSchema(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case reflect.Struct:
		return structSchema(t)
	default:
		return nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

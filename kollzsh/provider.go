package kollzsh

import (
	"bytes"
	"context"
	"encoding/json"
)

// providerClient is the internal interface each backend implements.
type providerClient interface {
	// Chat sends one non-streaming request and returns the reply as-is.
	// Transport, auth and decoding failures are returned as errors.
	Chat(ctx context.Context, req Request) (Reply, error)
}

// argumentsText turns tool arguments into JSON object text. Some models send
// the object wrapped in a JSON string; that wrapper is removed.
func argumentsText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			return inner
		}
	}
	return string(trimmed)
}

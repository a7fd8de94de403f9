package kollzsh

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

// withKeepAlive returns a copy of hc whose requests carry a keep_alive field,
// which Ollama's OpenAI-compatible endpoint reads but go-openai cannot set.
// hc is returned unchanged when keepAlive is empty.
func withKeepAlive(hc *http.Client, keepAlive string) *http.Client {
	raw := keepAliveJSON(keepAlive)
	if raw == nil {
		return hc
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	patched := *hc
	patched.Transport = &keepAliveTransport{base: base, keepAlive: raw}
	return &patched
}

// keepAliveTransport implements http.RoundTripper, rewriting JSON POST bodies.
type keepAliveTransport struct {
	base      http.RoundTripper
	keepAlive json.RawMessage
}

func (t *keepAliveTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil || req.Body == http.NoBody {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	patched, err := sjson.SetRawBytes(body, "keep_alive", t.keepAlive)
	if err != nil {
		// Not a JSON object; forward untouched.
		patched = body
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(patched))
	out.ContentLength = int64(len(patched))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(patched)), nil
	}
	return t.base.RoundTrip(out)
}

// keepAliveJSON sends whole seconds as a number and anything else
// ("5m", "1h30m") as a duration string, the two forms Ollama accepts.
func keepAliveJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return json.RawMessage(strconv.FormatInt(n, 10))
	}
	b, _ := json.Marshal(s)
	return b
}

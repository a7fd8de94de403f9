package kollzsh

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultLogFile is where the CLI appends diagnostics unless told otherwise.
const DefaultLogFile = "/tmp/kollzsh_debug.log"

// Config contains client-wide configuration.
// Exactly one provider and one contract are active per client.
type Config struct {
	Provider Provider
	Contract ContractKind

	// Model identifier passed verbatim to the backend.
	Model string
	// BaseURL of the backend. For ProviderOllama this is the server root
	// (http://localhost:11434); for ProviderOpenAI the API base (.../v1).
	// Google and Anthropic use their public endpoints when it is empty.
	BaseURL string
	// KeepAlive tells Ollama how long to keep the model loaded ("5m", "-1", "0").
	KeepAlive string

	// APIKey falls back to OPENAI_API_KEY, GOOGLE_API_KEY or ANTHROPIC_API_KEY
	// when DetectEnv is true.
	APIKey string

	// Shared client options.
	HTTPClient *http.Client
	Timeout    time.Duration // applied to the HTTP client when HTTPClient is nil

	// DetectEnv pulls a missing API key from the provider's usual variable.
	DetectEnv bool
}

// Validate reports every missing or invalid field in a single *ConfigError.
func (c Config) Validate() error {
	ce := &ConfigError{}
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGoogle, ProviderAnthropic:
	default:
		ce.Invalid = append(ce.Invalid, fmt.Sprintf("provider %q", c.Provider))
	}
	switch c.Contract {
	case ContractToolCall, ContractSchema:
	default:
		ce.Invalid = append(ce.Invalid, fmt.Sprintf("contract %d", int(c.Contract)))
	}

	if strings.TrimSpace(c.Model) == "" {
		ce.Missing = append(ce.Missing, "model (KOLLZSH_MODEL)")
	}
	switch c.Provider {
	case ProviderOllama:
		if strings.TrimSpace(c.BaseURL) == "" {
			ce.Missing = append(ce.Missing, "backend url (KOLLZSH_URL)")
		}
		if strings.TrimSpace(c.KeepAlive) == "" {
			ce.Missing = append(ce.Missing, "keep-alive (KOLLZSH_KEEP_ALIVE)")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.BaseURL) == "" {
			ce.Missing = append(ce.Missing, "backend url (KOLLZSH_URL)")
		}
	case ProviderGoogle:
		if strings.TrimSpace(c.APIKey) == "" {
			ce.Missing = append(ce.Missing, "api key (KOLLZSH_API_KEY or GOOGLE_API_KEY)")
		}
	case ProviderAnthropic:
		if strings.TrimSpace(c.APIKey) == "" {
			ce.Missing = append(ce.Missing, "api key (KOLLZSH_API_KEY or ANTHROPIC_API_KEY)")
		}
	}
	if _, err := parseKeepAlive(c.KeepAlive); err != nil {
		ce.Invalid = append(ce.Invalid, fmt.Sprintf("keep-alive %q", c.KeepAlive))
	}
	if c.Timeout < 0 {
		ce.Invalid = append(ce.Invalid, fmt.Sprintf("timeout %s", c.Timeout))
	}

	if ce.empty() {
		return nil
	}
	return ce
}

func (c Config) withEnv() Config {
	if !c.DetectEnv || c.APIKey != "" {
		return c
	}
	switch c.Provider {
	case ProviderOpenAI:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderGoogle:
		c.APIKey = os.Getenv("GOOGLE_API_KEY")
	case ProviderAnthropic:
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return c
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

// ParseProvider maps a user-facing name onto a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderOllama, nil
	case ProviderOllama, ProviderOpenAI, ProviderGoogle, ProviderAnthropic:
		return p, nil
	default:
		return "", &ConfigError{Invalid: []string{fmt.Sprintf("provider %q (want ollama, openai, google or anthropic)", s)}}
	}
}

// ParseContract maps a user-facing name onto a ContractKind.
func ParseContract(s string) (ContractKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tool", "tools", "tool-call":
		return ContractToolCall, nil
	case "schema", "json", "json-schema":
		return ContractSchema, nil
	default:
		return 0, &ConfigError{Invalid: []string{fmt.Sprintf("contract %q (want tool or schema)", s)}}
	}
}

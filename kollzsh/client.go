package kollzsh

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is a step of a single Produce call.
type State int

const (
	StateIdle State = iota
	StateRequestBuilt
	StateAwaitingBackend
	StateReplyReceived
	StateParsed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestBuilt:
		return "request_built"
	case StateAwaitingBackend:
		return "awaiting_backend"
	case StateReplyReceived:
		return "reply_received"
	case StateParsed:
		return "parsed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the full result of one query. Commands is empty whenever Err
// is set; Err is informational and never needs handling.
type Outcome struct {
	RequestID string
	Commands  []string
	State     State
	Err       error
}

// Client turns natural-language tasks into shell commands. It is safe for
// concurrent use; the backend is created once, on first use.
type Client struct {
	cfg      Config
	contract Contract
	logger   Logger

	mu      sync.Mutex
	backend providerClient // lazily init
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sends pipeline diagnostics to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New validates cfg and creates a Client. A *ConfigError is returned before
// any backend is contacted.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	contract, err := NewContract(cfg.Contract)
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, contract: contract}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = loggerOrDiscard(c.logger)
	return c, nil
}

// Contract returns the output contract attached to every request.
func (c *Client) Contract() Contract {
	return c.contract
}

// ProduceCommands returns the commands for query, or an empty list on any
// failure. Failures are only visible in the diagnostics.
func (c *Client) ProduceCommands(ctx context.Context, query string) []string {
	return c.Produce(ctx, query).Commands
}

// Produce runs one query end to end: build the request, call the backend
// once, parse the reply. Backend errors end in StateFailed; parse errors end
// in StateParsed with no commands.
func (c *Client) Produce(ctx context.Context, query string) Outcome {
	out := Outcome{RequestID: uuid.NewString(), State: StateIdle}
	l := requestLogger{Logger: c.logger, id: out.RequestID}

	req := BuildRequest(c.cfg, query, c.contract)
	out.State = StateRequestBuilt
	l.Debug("Sending query",
		"provider", c.cfg.Provider,
		"model", req.Model,
		"contract", req.Contract.Kind,
		"data", query,
	)

	pc, err := c.ensureProvider(ctx)
	if err != nil {
		return c.fail(l, out, err)
	}

	out.State = StateAwaitingBackend
	reply, err := pc.Chat(ctx, req)
	if err != nil {
		return c.fail(l, out, err)
	}

	out.State = StateReplyReceived
	l.Debug("Received response",
		"tool_calls", len(reply.ToolCalls),
		"content", reply.Content,
		"prompt_tokens", ptrInt(reply.PromptTokens),
		"completion_tokens", ptrInt(reply.CompletionTokens),
	)

	cmds, err := ParseReply(reply, c.contract, l)
	out.State = StateParsed
	out.Commands = cmds
	out.Err = err
	if len(cmds) == 0 {
		out.Commands = nil
		l.Debug("No valid commands found")
	}
	return out
}

func (c *Client) fail(l Logger, out Outcome, err error) Outcome {
	out.State = StateFailed
	out.Err = fmt.Errorf("%w: %w", ErrBackend, err)
	l.Warn("Error interacting with backend", "provider", c.cfg.Provider, "error", err)
	return out
}

func (c *Client) ensureProvider(ctx context.Context) (providerClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	var (
		pc  providerClient
		err error
	)
	switch c.cfg.Provider {
	case ProviderOllama:
		pc, err = newOllamaProvider(c.cfg)
	case ProviderOpenAI:
		pc, err = newOpenAIProvider(c.cfg)
	case ProviderGoogle:
		pc, err = newGoogleProvider(ctx, c.cfg)
	case ProviderAnthropic:
		pc, err = newAnthropicProvider(c.cfg)
	default:
		err = fmt.Errorf("kollzsh: unsupported provider %q", c.cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	c.backend = pc
	return pc, nil
}

// requestLogger tags every diagnostic with the request id.
type requestLogger struct {
	Logger
	id string
}

func (r requestLogger) Debug(msg interface{}, keyvals ...interface{}) {
	r.Logger.Debug(msg, append([]interface{}{"request_id", r.id}, keyvals...)...)
}

func (r requestLogger) Warn(msg interface{}, keyvals ...interface{}) {
	r.Logger.Warn(msg, append([]interface{}{"request_id", r.id}, keyvals...)...)
}

func ptrInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

package kollzsh

import (
	"errors"
	"strings"
)

var (
	// ErrBackend wraps every failure raised while talking to the backend.
	ErrBackend = errors.New("kollzsh: backend call failed")
	// ErrParse marks content that could not be decoded as JSON.
	ErrParse = errors.New("kollzsh: cannot parse reply content")
	// ErrShape marks decoded content that does not match the contract.
	ErrShape = errors.New("kollzsh: reply does not match contract shape")
	// ErrEmptyReply marks a reply with neither tool calls nor content.
	ErrEmptyReply = errors.New("kollzsh: reply carries no commands")
)

// ConfigError reports required configuration that is missing or invalid.
// It is the only error allowed to stop the process before a request is sent.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("kollzsh: configuration error")
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		if len(e.Missing) > 0 {
			b.WriteString(";")
		} else {
			b.WriteString(":")
		}
		b.WriteString(" invalid ")
		b.WriteString(strings.Join(e.Invalid, ", "))
	}
	return b.String()
}

func (e *ConfigError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

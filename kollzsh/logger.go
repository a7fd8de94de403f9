package kollzsh

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger receives a diagnostic for every significant pipeline step.
// *log.Logger from github.com/charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
}

var discardLogger Logger = log.New(io.Discard)

func loggerOrDiscard(l Logger) Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

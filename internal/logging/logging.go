// Package logging hands out gommon loggers that share one output and level.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	level            = log.INFO
)

// New returns a logger with the given prefix, writing to the shared output.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	mu.RLock()
	l.SetOutput(output)
	l.SetLevel(level)
	mu.RUnlock()
	return l
}

// SetOutput redirects loggers created from now on. The stdio MCP server
// needs stdout for the protocol and moves logs to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	log.SetOutput(w)
}

func SetLevel(l log.Lvl) {
	mu.Lock()
	level = l
	mu.Unlock()
	log.SetLevel(l)
}

// LevelFor maps an environment name to a log level: debug output in dev,
// info otherwise.
func LevelFor(env string) log.Lvl {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return log.DEBUG
	case "test":
		return log.WARN
	default:
		return log.INFO
	}
}

// Package logging provides the process-wide structured logger used by
// every gatewayd component.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	instance *log.Logger
	once     sync.Once
)

// Root returns the singleton root logger, configured from GATEWAY_LOG_LEVEL
// on first use.
func Root() *log.Logger {
	once.Do(func() {
		instance = log.NewWithOptions(os.Stderr, log.Options{
			Level:           log.InfoLevel,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
		})
		if lvl := os.Getenv("GATEWAY_LOG_LEVEL"); lvl != "" {
			instance.SetLevel(parseLevel(lvl))
		}
	})
	return instance
}

// For returns a sub-logger tagged with the given component name, e.g.
// logging.For("certorch").
func For(component string) *log.Logger {
	l := Root().With("component", component)
	return l
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

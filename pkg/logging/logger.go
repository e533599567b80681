// Package logging builds the hclog loggers used by runpack.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvJSONLog switches output to JSON; config binds it to log_json.
	EnvJSONLog = "RUNPACK_JSON_LOG"

	// DefaultLevel is used when nothing else selects a level.
	DefaultLevel = "warn"

	linePrefix = "📦 "
)

// Options configures New.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New creates a logger from explicit options.
func New(opts Options) hclog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	// Add prefix for non-JSON output
	if !opts.JSON {
		output = NewPrefixWriter(linePrefix, output)
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.LevelFromString(DefaultLevel)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		JSONFormat: opts.JSON,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Package logging builds the hclog logger shared by every component.
package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger
type Options struct {
	Name  string
	Level string
	JSON  bool
	// File, when set, receives a copy of every line and is rotated
	File   string
	Output io.Writer
}

// Logger wraps an hclog logger together with its rotating file, if any
type Logger struct {
	hclog.Logger
	file *lumberjack.Logger
}

// New creates a logger from opts. Unknown levels fall back to info.
func New(opts Options) *Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, l.file)
	}

	l.Logger = hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
	return l
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

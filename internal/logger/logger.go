// Package logger wraps logrus with file rotation and the run/listing trace
// helpers used across the pricing pipeline.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields type alias for logrus.Fields
type Fields = logrus.Fields

// Log wraps logrus.Logger
type Log struct {
	*logrus.Logger
}

// Options controls log level and optional rotating file output.
type Options struct {
	Level      string // debug, info, warn, error; defaults to info
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a configured logger. With a FilePath set, output goes to both
// stdout and a size-rotated file.
func New(opts Options) *Log {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := strings.ToLower(opts.Level)
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(parsed)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	if opts.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		l.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}

	return &Log{l}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Log {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Log{l}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

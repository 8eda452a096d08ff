package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions describes the console and rotating file sinks.
type LoggerOptions struct {
	// Level is a severity name accepted by ParseLevel
	Level string

	// Verbose forces the debug level regardless of Level
	Verbose bool

	// Format is console or json; applies to both sinks
	Format string

	// File is the rotating log file; empty disables the file sink
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Console overrides the console stream (stderr when nil)
	Console io.Writer
}

// ParseLevel converts a severity name to a zap level. Accepted names are
// debug, info, warning, warn, error and critical.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error", "critical":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds a logger that writes timestamped, leveled lines to the
// console and, when File is set, to a size-rotated file.
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	atomic := zap.NewAtomicLevelAt(level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	newEncoder := func() zapcore.Encoder {
		if strings.EqualFold(opts.Format, "json") {
			return zapcore.NewJSONEncoder(encoderConfig)
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(), zapcore.Lock(zapcore.AddSync(console)), atomic),
	}

	if strings.TrimSpace(opts.File) != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(rotating), atomic))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

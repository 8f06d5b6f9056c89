// Package logging builds the zap logger used by every kppmap command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/notargets/kppmap/config"
	"github.com/notargets/kppmap/errdefs"
)

// Options are the command-line overrides of the [logging] section
type Options struct {
	Debug bool   // forces debug level
	Level string // overrides the configured level when set
}

// ParseLevel maps a level name onto a zap level
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.Set(name); err != nil {
		return l, fmt.Errorf("log level %q: %v: %w", name, err, errdefs.ErrInvalidArguments)
	}
	return l, nil
}

// New builds a logger writing to w and, if the config names one, to a
// rotated log file. Every entry carries the run id.
func New(cfg config.LoggingConfig, opts Options, w io.Writer) (*zap.Logger, string, error) {
	name := cfg.Level
	if opts.Level != "" {
		name = opts.Level
	}
	level, err := ParseLevel(name)
	if err != nil {
		return nil, "", err
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	enc := encoder(cfg.Format)
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)}
	if cfg.File != "" {
		sink, err := rotate(cfg)
		if err != nil {
			return nil, "", err
		}
		// Files always get JSON so they can be parsed back
		cores = append(cores, zapcore.NewCore(jsonEncoder(), sink, level))
	}

	run := uuid.NewString()
	return zap.New(zapcore.NewTee(cores...)).With(zap.String("run", run)), run, nil
}

// NewStderr is New writing to stderr
func NewStderr(cfg config.LoggingConfig, opts Options) (*zap.Logger, string, error) {
	return New(cfg, opts, os.Stderr)
}

func encoder(format string) zapcore.Encoder {
	if format == "json" {
		return jsonEncoder()
	}
	conf := zap.NewDevelopmentEncoderConfig()
	conf.CallerKey = ""
	return zapcore.NewConsoleEncoder(conf)
}

func jsonEncoder() zapcore.Encoder {
	conf := zap.NewProductionEncoderConfig()
	conf.CallerKey = ""
	conf.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(conf)
}

func rotate(cfg config.LoggingConfig) (zapcore.WriteSyncer, error) {
	// Make sure directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}
	// lumberjack.Logger is already safe for concurrent use
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
	}), nil
}

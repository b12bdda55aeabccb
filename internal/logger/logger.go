// Package logger builds the zap logger used by every poagov component.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	Verbose bool
	// Writer receives console output. Defaults to stderr.
	Writer io.Writer
	// File switches output to a rotated JSON log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a logger and a function that flushes and closes its outputs.
func New(opts Options) (*zap.Logger, func() error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxBackups: opts.MaxBackups,
		}
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
		log := zap.New(core)
		return log, func() error {
			_ = log.Sync()
			return rotator.Close()
		}
	}

	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    coloredLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(opts.Writer), level)
	log := zap.New(core)
	return log, func() error {
		_ = log.Sync()
		return nil
	}
}

func coloredLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var levelColor *color.Color
	switch l {
	case zapcore.DebugLevel:
		levelColor = color.New(color.FgWhite)
	case zapcore.InfoLevel:
		levelColor = color.New(color.FgBlue)
	case zapcore.WarnLevel:
		levelColor = color.New(color.FgYellow)
	default:
		levelColor = color.New(color.FgRed)
	}
	enc.AppendString(levelColor.Sprint(l.CapitalString()))
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02 15:04:05"))
}

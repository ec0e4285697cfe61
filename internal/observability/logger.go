// Package observability owns the process-wide zap logger.
//
// Log lines go to stderr: stdout belongs to the scenario report, which is
// often piped or redirected on its own.
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/v0xg/formprobe/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const ansiReset = "\x1b[0m"

var ansi = map[string]string{
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// New builds a logger writing human-readable lines to console and, when
// cfg.LogFile is set, JSON lines to a rotated file.
func New(cfg config.LoggerConfig, console zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(cfg), console, level)}
	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(rotated), level))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}
	return logger
}

// Initialize installs New(cfg, console) as the global logger. Only the
// first call has any effect.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		logger := New(cfg, console)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
	})
}

// InitializeLogger initializes the global logger on stderr. Level colours
// are dropped when stderr is not a terminal.
func InitializeLogger(cfg config.LoggerConfig) {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		cfg.Colors = config.ColorConfig{}
	}
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

// ResetForTest clears the global logger so it can be initialized again.
// Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// GetLogger returns the global logger, or a development logger when
// Initialize has not run.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Syncing a terminal or pipe fails on some
// platforms; those errors are dropped.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	err := logger.Sync()
	if err == nil {
		return
	}
	for _, benign := range []string{"sync /dev/stderr", "sync /dev/stdout", "invalid argument", "inappropriate ioctl", "operation not supported"} {
		if strings.Contains(err.Error(), benign) {
			return
		}
	}
	fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	return ec
}

func jsonEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// consoleEncoder honours cfg.Format; "json" gives JSON on the console too.
func consoleEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return jsonEncoder()
	}
	ec := baseEncoderConfig()
	ec.EncodeLevel = levelEncoder(cfg.Colors)
	// "formprobe.runner." sets the component apart from the message
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

func levelEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel: ansi[colors.Debug],
		zapcore.InfoLevel:  ansi[colors.Info],
		zapcore.WarnLevel:  ansi[colors.Warn],
	}
	errColor := ansi[colors.Error]
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		text := level.CapitalString()
		code, ok := byLevel[level]
		if !ok {
			code = errColor
		}
		if code == "" {
			enc.AppendString(text)
			return
		}
		enc.AppendString(code + text + ansiReset)
	}
}

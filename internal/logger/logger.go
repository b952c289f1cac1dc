package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It discards everything until Initialize
// runs, so packages and tests can log unconditionally.
var Log = zap.NewNop()

// Options configures Initialize
type Options struct {
	// Level is debug, info, warn or error (default info)
	Level string
	// File receives JSON logs with rotation (default server.log)
	File string
	// JSON switches stdout from the human-readable console encoder to JSON
	JSON bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Initialize replaces Log with a logger that writes to stdout and to a
// rotating file
func Initialize(opts Options) error {
	if opts.File == "" {
		opts.File = "server.log"
	}
	if opts.Level == "" {
		opts.Level = "info"
	}
	level := parseLogLevel(opts.Level)

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    valueOr(opts.MaxSizeMB, 100),
		MaxBackups: valueOr(opts.MaxBackups, 5),
		MaxAge:     valueOr(opts.MaxAgeDays, 7),
		Compress:   true,
	})

	jsonConfig := zap.NewProductionEncoderConfig()
	jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(jsonConfig)

	stdoutEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if opts.JSON {
		stdoutEncoder = jsonEncoder.Clone()
	}

	core := zapcore.NewTee(
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(jsonEncoder, fileWriter, level),
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("file", opts.File),
		zap.Bool("json", opts.JSON),
	)
	return nil
}

// Close flushes buffered entries
func Close() error {
	return Log.Sync()
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// WarnWithFields logs a warning, attaching err when present
func WarnWithFields(msg string, err error) {
	if err != nil {
		Log.Warn(msg, zap.Error(err))
		return
	}
	Log.Warn(msg)
}

// ErrorWithFields logs an error, attaching err when present
func ErrorWithFields(msg string, err error) {
	if err != nil {
		Log.Error(msg, zap.Error(err))
		return
	}
	Log.Error(msg)
}

// FatalWithFields logs and exits
func FatalWithFields(msg string, err error) {
	if err != nil {
		Log.Fatal(msg, zap.Error(err))
		return
	}
	Log.Fatal(msg)
}

// Field helpers shared across packages

func WithRequestID(requestID string) zap.Field { return zap.String("request_id", requestID) }

func WithUserID(userID string) zap.Field { return zap.String("user_id", userID) }

func WithRecipeID(recipeID string) zap.Field { return zap.String("recipe_id", recipeID) }

func WithIndex(index string) zap.Field { return zap.String("index", index) }

func WithOperation(op string) zap.Field { return zap.String("operation", op) }

func WithStatus(status int) zap.Field { return zap.Int("status", status) }

func WithDuration(d time.Duration) zap.Field { return zap.Duration("duration", d) }

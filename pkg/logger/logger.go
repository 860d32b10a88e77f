package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/killallgit/foliochat/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a component-scoped logger taking a message and alternating
// key/value pairs.
type Logger struct {
	component string
}

var (
	mu          sync.RWMutex
	base        = zap.NewNop()
	rotator     io.Closer
	initialized bool
)

// Init initializes the logger with configuration from global config
func Init() error {
	mu.RLock()
	done := initialized
	mu.RUnlock()
	if done {
		return nil
	}

	settings := config.Get()
	logPath := settings.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = config.BuildSettingsPath(filepath.Base(logPath))
	}

	if err := New(ParseLevel(settings.Logging.Level), logPath, settings.Logging.Preserve); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// New replaces the package logger with one writing JSON lines to a rotated
// logFile. Errors are mirrored to stderr. Unless preserve is set the file
// starts empty.
func New(level zapcore.Level, logFile string, preserve bool) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if !preserve {
		if err := os.Remove(logFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear log file: %w", err)
		}
	}

	rotate := &lumberjack.Logger{
		Filename: logFile,
		MaxSize:  50,
		MaxAge:   14,
		Compress: true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotate), level)
	stderrCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), zap.ErrorLevel)

	install(zap.New(zapcore.NewTee(fileCore, stderrCore)), rotate)
	return nil
}

// SetOutput sends all log output at level and above to w (useful for testing)
func SetOutput(w io.Writer, level zapcore.Level) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level)
	install(zap.New(core), nil)
}

func install(l *zap.Logger, closer io.Closer) {
	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		_ = rotator.Close()
	}
	base = l
	rotator = closer
	initialized = true
}

// ParseLevel converts a string level to a zap level, defaulting to info
func ParseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Close flushes and closes the log file
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	_ = base.Sync()
	var err error
	if rotator != nil {
		err = rotator.Close()
		rotator = nil
	}
	base = zap.NewNop()
	initialized = false
	return err
}

// WithComponent returns a logger that tags every entry with component
func WithComponent(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	return current().With(zap.String("component", l.component)).Sugar()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar().Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar().Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar().Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar().Errorw(msg, keysAndValues...)
}

// Package-level convenience functions using the default logger

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) {
	current().Sugar().Debugf(format, args...)
}

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) {
	current().Sugar().Infof(format, args...)
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) {
	current().Sugar().Warnf(format, args...)
}

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) {
	current().Sugar().Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func Fatal(format string, args ...interface{}) {
	l := current()
	if l.Core().Enabled(zap.FatalLevel) {
		l.Sugar().Fatalf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "[FATAL] "+format+"\n", args...)
	os.Exit(1)
}

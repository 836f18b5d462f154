package packforge

// Logger defines the interface for loader logging.
// packforge uses structured logging with key-value pairs so that
// embedding hosts can control how loader logs appear.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// This approach is compatible with popular structured logging libraries
// like slog, logrus, zap, and others.
//
// Example implementation using Go's standard log/slog:
//
//	type SlogLogger struct {
//	    logger *slog.Logger
//	}
//
//	func (l *SlogLogger) Info(msg string, args ...any) {
//	    l.logger.Info(msg, args...)
//	}
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal loader events like participant discovery and stage transitions.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failures that the pipeline isolates rather than propagates.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for detailed diagnostic information, typically disabled in production.
	Debug(msg string, args ...any)
}

// LoggerDecorator defines the interface for decorating loggers.
// Decorators wrap loggers to add additional functionality without
// modifying the core logger implementation.
type LoggerDecorator interface {
	Logger

	// GetInnerLogger returns the wrapped logger
	GetInnerLogger() Logger
}

// BaseLoggerDecorator provides a foundation for logger decorators.
// It implements LoggerDecorator by forwarding all calls to the wrapped logger.
type BaseLoggerDecorator struct {
	inner Logger
}

// NewBaseLoggerDecorator creates a new base decorator wrapping the given logger.
func NewBaseLoggerDecorator(inner Logger) *BaseLoggerDecorator {
	return &BaseLoggerDecorator{inner: inner}
}

// GetInnerLogger returns the wrapped logger
func (d *BaseLoggerDecorator) GetInnerLogger() Logger {
	return d.inner
}

func (d *BaseLoggerDecorator) Info(msg string, args ...any) {
	d.inner.Info(msg, args...)
}

func (d *BaseLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(msg, args...)
}

func (d *BaseLoggerDecorator) Warn(msg string, args ...any) {
	d.inner.Warn(msg, args...)
}

func (d *BaseLoggerDecorator) Debug(msg string, args ...any) {
	d.inner.Debug(msg, args...)
}

// LevelFilter is a LoggerDecorator that drops entries below a minimum
// level. Hosts that want quieter loader output wrap their sink with a
// LevelFilter before attaching it to the deferred logger.
type LevelFilter struct {
	*BaseLoggerDecorator
	min LogLevel
}

// NewLevelFilter wraps inner so that only entries at min or above reach it.
func NewLevelFilter(inner Logger, min LogLevel) *LevelFilter {
	return &LevelFilter{BaseLoggerDecorator: NewBaseLoggerDecorator(inner), min: min}
}

func (f *LevelFilter) Debug(msg string, args ...any) {
	if f.min <= LevelDebug {
		f.BaseLoggerDecorator.Debug(msg, args...)
	}
}

func (f *LevelFilter) Info(msg string, args ...any) {
	if f.min <= LevelInfo {
		f.BaseLoggerDecorator.Info(msg, args...)
	}
}

func (f *LevelFilter) Warn(msg string, args ...any) {
	if f.min <= LevelWarn {
		f.BaseLoggerDecorator.Warn(msg, args...)
	}
}

func (f *LevelFilter) Error(msg string, args ...any) {
	if f.min <= LevelError {
		f.BaseLoggerDecorator.Error(msg, args...)
	}
}

var (
	_ LoggerDecorator = (*BaseLoggerDecorator)(nil)
	_ LoggerDecorator = (*LevelFilter)(nil)
)

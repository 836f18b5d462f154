package packforge

import (
	"sync"
)

// LogLevel identifies the severity of a buffered log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name used when entries are rendered.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

type deferredEntry struct {
	level LogLevel
	msg   string
	args  []any
}

// DeferredLogger buffers log entries until a sink is attached, then flushes
// them in original order and forwards all subsequent entries directly.
//
// The loader starts logging before the embedding host has decided where logs
// go (the host may not even have constructed its logger yet). DeferredLogger
// lets every component log unconditionally from the first instruction; nothing
// is dropped while no sink exists.
//
// DeferredLogger implements Logger and is safe for concurrent use: patch
// activation code may log from arbitrary goroutines while the pipeline is
// still buffering or mid-drain.
type DeferredLogger struct {
	mu      sync.Mutex
	sink    Logger
	entries []deferredEntry
}

// NewDeferredLogger creates a DeferredLogger in its buffering phase.
func NewDeferredLogger() *DeferredLogger {
	return &DeferredLogger{}
}

// AttachSink transitions the logger to its draining phase: the buffer is
// flushed to sink in append order, then cleared, and every later call is
// forwarded to sink directly. Attaching a replacement sink is permitted;
// entries logged between attachments are never re-buffered.
//
// The drain happens under the same lock that guards appends, so no entry
// logged concurrently with AttachSink can be lost or reordered.
func (d *DeferredLogger) AttachSink(sink Logger) {
	if sink == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	for _, e := range d.entries {
		d.forward(e.level, e.msg, e.args...)
	}
	d.entries = nil
}

// Sink returns the currently attached sink, or nil while buffering.
func (d *DeferredLogger) Sink() Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

// GetInnerLogger implements LoggerDecorator over the attached sink. It is
// nil while the logger is still buffering.
func (d *DeferredLogger) GetInnerLogger() Logger { return d.Sink() }

var _ LoggerDecorator = (*DeferredLogger)(nil)

func (d *DeferredLogger) log(level LogLevel, msg string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sink == nil {
		d.entries = append(d.entries, deferredEntry{level: level, msg: msg, args: args})
		return
	}
	d.forward(level, msg, args...)
}

// forward requires d.mu held.
func (d *DeferredLogger) forward(level LogLevel, msg string, args ...any) {
	switch level {
	case LevelDebug:
		d.sink.Debug(msg, args...)
	case LevelInfo:
		d.sink.Info(msg, args...)
	case LevelWarn:
		d.sink.Warn(msg, args...)
	case LevelError:
		d.sink.Error(msg, args...)
	}
}

func (d *DeferredLogger) Debug(msg string, args ...any) { d.log(LevelDebug, msg, args...) }

func (d *DeferredLogger) Info(msg string, args ...any) { d.log(LevelInfo, msg, args...) }

func (d *DeferredLogger) Warn(msg string, args ...any) { d.log(LevelWarn, msg, args...) }

func (d *DeferredLogger) Error(msg string, args ...any) { d.log(LevelError, msg, args...) }

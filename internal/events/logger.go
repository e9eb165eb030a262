package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// EventLogger provides structured logging for key events in the relay
// broker. It never fails and must never be called before the result slot
// write on the result-post path.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger creates a new EventLogger with JSON output to stdout.
func NewEventLogger() *EventLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{
		logger: slog.New(handler).With("component", "tvbridge"),
	}
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to
// a custom writer. Useful for testing or redirecting output.
func NewEventLoggerWithWriter(w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{
		logger: slog.New(handler).With("component", "tvbridge"),
	}
}

// LogCommandEnqueued logs a command entering the ingress FIFO.
// event: "command_enqueued"
func (el *EventLogger) LogCommandEnqueued(commandID, function string, paramCount int) {
	el.logger.Info("command_enqueued",
		"command_id", commandID,
		"function", function,
		"param_count", paramCount,
	)
}

// LogCommandDispatched logs a command pulled by the device.
// event: "command_dispatched"
func (el *EventLogger) LogCommandDispatched(commandID, function string, queueWaitMs int64) {
	el.logger.Info("command_dispatched",
		"command_id", commandID,
		"function", function,
		"queue_wait_ms", queueWaitMs,
	)
}

// LogResultReceived logs a result posted by the device. The timing
// report may be nil when the command was never tracked.
func (el *EventLogger) LogResultReceived(commandID string, success bool, report interface{}) {
	el.logger.Info("result_received",
		"command_id", commandID,
		"success", success,
		"timing", report,
	)
}

// LogResultDrained logs a result consumed by a controller poll.
// event: "result_drained"
func (el *EventLogger) LogResultDrained(commandID string, success bool) {
	el.logger.Info("result_drained",
		"command_id", commandID,
		"success", success,
	)
}

// LogDeviceStale logs the lazy connected-to-false transition.
// event: "device_stale"
func (el *EventLogger) LogDeviceStale(lastSeenMs int64) {
	el.logger.Warn("device_stale",
		"last_seen_ms", lastSeenMs,
	)
}

// LogFunctionsUploaded logs a replacement of the function inventory.
// event: "functions_uploaded"
func (el *EventLogger) LogFunctionsUploaded(count int, ip string) {
	el.logger.Info("functions_uploaded",
		"function_count", count,
		"ip", ip,
	)
}

// LogSessionSaved logs a session create or merge-save.
// event: "session_saved"
func (el *EventLogger) LogSessionSaved(sessionID, action string, totalFiles, newFiles, runID int) {
	el.logger.Info("session_saved",
		"session_id", sessionID,
		"action", action,
		"total_files", totalFiles,
		"new_files", newFiles,
		"run_id", runID,
	)
}

// LogSessionDeleted logs a session file removal.
// event: "session_deleted"
func (el *EventLogger) LogSessionDeleted(sessionID string) {
	el.logger.Info("session_deleted",
		"session_id", sessionID,
	)
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns an event logger that discards all events.
func NoopEventLogger() *EventLogger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{logger: slog.New(handler)}
}

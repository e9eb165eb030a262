// Package broker implements the in-memory state machine of the relay:
// the command queue, result slots, per-command timing, device liveness
// and the uploaded function inventory.
package broker

import "errors"

// CustomCodeFunction is the sentinel function name that marks a command
// carrying arbitrary source code in parameters[0]. The broker relays it
// without parsing or validating the code.
const CustomCodeFunction = "__CUSTOM_CODE__"

// ExecutionMode describes how the device should execute a command.
type ExecutionMode string

const (
	ExecutionModeDirect ExecutionMode = "direct"
	ExecutionModeCustom ExecutionMode = "custom"
)

// Command is a single function invocation queued for the device.
type Command struct {
	ID            string        `json:"id"`
	Function      string        `json:"function"`
	Parameters    []interface{} `json:"parameters"`
	SourceCode    string        `json:"sourceCode,omitempty"`
	ExecutionMode ExecutionMode `json:"executionMode,omitempty"`
	QueuedAt      int64         `json:"queuedAt"`
	Timestamp     string        `json:"timestamp"`
}

// CommandResult is the device's response to a dispatched command.
// Exactly one of Data or Error is meaningful per outcome.
type CommandResult struct {
	CommandID          string      `json:"commandId"`
	Success            bool        `json:"success"`
	Data               interface{} `json:"data,omitempty"`
	Error              string      `json:"error,omitempty"`
	TVProcessingTimeMs *float64    `json:"tvProcessingTimeMs,omitempty"`
}

// FunctionEntry describes one function discovered on the device.
type FunctionEntry struct {
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters"`
	SourceCode  string   `json:"sourceCode,omitempty"`
	Description string   `json:"description,omitempty"`
	Available   *bool    `json:"available,omitempty"`
}

// ConnectionInfo is the device liveness snapshot exposed to controllers.
// LastSeen is a unix-millisecond timestamp, nil when never seen.
type ConnectionInfo struct {
	Connected  bool                   `json:"connected"`
	LastSeen   *int64                 `json:"lastSeen"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	DeviceInfo map[string]interface{} `json:"deviceInfo,omitempty"`
}

var (
	// ErrDeviceUnavailable is returned by Enqueue when the device has not
	// been seen within the staleness window.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrDuplicateCommandID is returned by Enqueue when the caller-supplied
	// id is still pending or has an undrained result.
	ErrDuplicateCommandID = errors.New("duplicate command id")

	// ErrMissingFunction is returned by Enqueue when the function name is empty.
	ErrMissingFunction = errors.New("function is required")
)

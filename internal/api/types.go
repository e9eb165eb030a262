// Package api exposes the broker over HTTP. Request and response bodies
// are JSON with the wire field names the device runtime and controllers
// expect.
package api

import (
	"github.com/bc-dunia/tvbridge/internal/broker"
	"github.com/bc-dunia/tvbridge/internal/session"
	"github.com/bc-dunia/tvbridge/internal/sysinfo"
)

// UploadFunctionsRequest is the request body for POST /api/functions.
type UploadFunctionsRequest struct {
	Functions  []broker.FunctionEntry `json:"functions"`
	DeviceInfo map[string]interface{} `json:"deviceInfo"`
	Timestamp  string                 `json:"timestamp,omitempty"`
}

// AckResponse is the generic device acknowledgement body.
type AckResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GetFunctionsResponse is the response body for GET /api/functions.
type GetFunctionsResponse struct {
	Functions      []broker.FunctionEntry `json:"functions"`
	DeviceInfo     map[string]interface{} `json:"deviceInfo"`
	Timestamp      string                 `json:"timestamp"`
	ConnectionInfo broker.ConnectionInfo  `json:"connectionInfo"`
}

// EnqueueCommandRequest is the request body for POST /api/remote-command.
type EnqueueCommandRequest struct {
	ID            string        `json:"id,omitempty"`
	Function      string        `json:"function"`
	Parameters    []interface{} `json:"parameters"`
	SourceCode    string        `json:"sourceCode,omitempty"`
	ExecutionMode string        `json:"executionMode,omitempty"`
}

// EnqueueCommandResponse is the response body for POST /api/remote-command.
type EnqueueCommandResponse struct {
	Success   bool   `json:"success"`
	CommandID string `json:"commandId"`
}

// DispatchResponse is the response body for GET /api/remote-command.
type DispatchResponse struct {
	HasCommand bool            `json:"hasCommand"`
	Command    *broker.Command `json:"command,omitempty"`
}

// DispatchBatchResponse is the response body for GET /api/remote-command-batch.
type DispatchBatchResponse struct {
	HasCommands      bool              `json:"hasCommands"`
	Commands         []*broker.Command `json:"commands"`
	RemainingInQueue int               `json:"remainingInQueue"`
}

// PostResultResponse is the response body for POST /api/execute-response.
type PostResultResponse struct {
	Success bool `json:"success"`
}

// WaitingResponse is returned by a result drain when no result is stored
// yet and the device is alive.
type WaitingResponse struct {
	Waiting bool `json:"waiting"`
}

// DisconnectedResponse is returned by a result drain when the device has
// gone stale.
type DisconnectedResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PublicFile is one file in a POST /api/save-to-public request.
type PublicFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// SaveToPublicRequest is the request body for POST /api/save-to-public.
type SaveToPublicRequest struct {
	Files []PublicFile `json:"files"`
}

// SaveToPublicResponse is the response body for POST /api/save-to-public.
type SaveToPublicResponse struct {
	Success  bool     `json:"success"`
	Saved    []string `json:"saved"`
	Location string   `json:"location"`
	Message  string   `json:"message"`
}

// SessionSaveResponse is the response body for POST /api/scan/session/save.
type SessionSaveResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	TotalFiles int    `json:"totalFiles"`
	NewFiles   int    `json:"newFiles"`
	RunID      int    `json:"runId"`
	Size       int64  `json:"size"`
}

// SessionLoadResponse is the response body for GET /api/scan/session/load/{id}.
type SessionLoadResponse struct {
	SessionID string           `json:"sessionId"`
	Metadata  session.Metadata `json:"metadata"`
	Data      session.Data     `json:"data"`
}

// DeleteSessionResponse is the response body for DELETE /api/scan/session/delete/{id}.
type DeleteSessionResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response body for GET /readyz.
type ReadyResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// StatusResponse is the broker self-report for GET /api/status.
type StatusResponse struct {
	Status         string                `json:"status"`
	UptimeMs       int64                 `json:"uptimeMs"`
	QueueDepth     int                   `json:"queueDepth"`
	PendingResults int                   `json:"pendingResults"`
	FunctionCount  int                   `json:"functionCount"`
	ConnectionInfo broker.ConnectionInfo `json:"connectionInfo"`
	Host           *sysinfo.HostMetrics  `json:"host,omitempty"`
}

// Error sentinels used on the wire.
const (
	ErrCodeTVNotConnected  = "TV_NOT_CONNECTED"
	ErrCodeTVDisconnected  = "TV_DISCONNECTED"
	ErrCodeDuplicateID     = "DUPLICATE_COMMAND_ID"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
)

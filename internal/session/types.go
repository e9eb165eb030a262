// Package session implements the persistent scan-session store: one
// minified JSON file per session, with run-aware merge semantics across
// repeated uploads.
package session

import "errors"

// ScanHistoryEntry records the status a path had during one run.
type ScanHistoryEntry struct {
	RunID     int    `json:"runId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// FileRecord is one scanned path inside a session. Path is the unique
// key within Data.Results.
type FileRecord struct {
	Path               string             `json:"path"`
	Status             string             `json:"status"`
	Size               *int64             `json:"size,omitempty"`
	Content            *string            `json:"content,omitempty"`
	IsBinary           bool               `json:"isBinary,omitempty"`
	Timestamp          string             `json:"timestamp,omitempty"`
	ExtractedPaths     []string           `json:"extractedPaths,omitempty"`
	GeneratedPaths     []string           `json:"generatedPaths,omitempty"`
	IgnoredPaths       []string           `json:"ignoredPaths,omitempty"`
	VariableReferences []string           `json:"variableReferences,omitempty"`
	DiscoveryMethod    string             `json:"discoveryMethod,omitempty"`
	DiscoveredFrom     string             `json:"discoveredFrom,omitempty"`
	IsPlaceholder      bool               `json:"isPlaceholder,omitempty"`
	ScanHistory        []ScanHistoryEntry `json:"scanHistory,omitempty"`
	DebugLog           []string           `json:"debugLog,omitempty"`
}

// RunInfo is one entry in the append-only run list of a session.
type RunInfo struct {
	RunID        int     `json:"runId"`
	Timestamp    string  `json:"timestamp"`
	FilesScanned int     `json:"filesScanned"`
	Duration     float64 `json:"duration"`
	Status       string  `json:"status"`
}

// Metadata holds the aggregate counts recomputed after every merge.
type Metadata struct {
	Name         string `json:"name,omitempty"`
	Status       string `json:"status,omitempty"`
	TotalFiles   int    `json:"totalFiles"`
	SuccessCount int    `json:"successCount"`
	FailedCount  int    `json:"failedCount"`
	TextCount    int    `json:"textCount"`
	BinaryCount  int    `json:"binaryCount"`
	TotalRuns    int    `json:"totalRuns"`
}

// Data is the merged payload of a session: path-keyed results, the last
// reported session state, variables and deferred paths.
type Data struct {
	Results       []FileRecord           `json:"results"`
	Session       map[string]interface{} `json:"session"`
	Variables     map[string]interface{} `json:"variables"`
	DeferredPaths []string               `json:"deferredPaths"`
}

// Session is the persistent accumulation of scan results across runs.
type Session struct {
	SessionID    string    `json:"sessionId"`
	Version      string    `json:"version"`
	Created      string    `json:"created"`
	LastModified string    `json:"lastModified"`
	Metadata     Metadata  `json:"metadata"`
	Runs         []RunInfo `json:"runs"`
	Data         Data      `json:"data"`
}

// Summary is the compact per-session view returned by List.
type Summary struct {
	SessionID    string `json:"sessionId"`
	Name         string `json:"name,omitempty"`
	Status       string `json:"status,omitempty"`
	TotalFiles   int    `json:"totalFiles"`
	SuccessCount int    `json:"successCount"`
	FailedCount  int    `json:"failedCount"`
	TotalRuns    int    `json:"totalRuns"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
	CanResume    bool   `json:"canResume"`
	CanBrowse    bool   `json:"canBrowse"`
}

// SaveRequest is the payload of a create or merge save.
type SaveRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	RunID     *int   `json:"runId,omitempty"`
	Data      Data   `json:"data"`
}

// SaveResult reports the outcome of a save. NewFiles is the delta
// against the pre-merge file count, or TotalFiles on create.
type SaveResult struct {
	SessionID  string `json:"sessionId"`
	TotalFiles int    `json:"totalFiles"`
	NewFiles   int    `json:"newFiles"`
	RunID      int    `json:"runId"`
	Size       int64  `json:"size"`
}

// ResumeView is the envelope returned when a controller resumes a session.
type ResumeView struct {
	SessionID     string                 `json:"sessionId"`
	Session       map[string]interface{} `json:"session"`
	Results       []FileRecord           `json:"results"`
	Variables     map[string]interface{} `json:"variables"`
	DeferredPaths []string               `json:"deferredPaths"`
	NextRunID     int                    `json:"nextRunId"`
}

// ErrNotFound is returned when a session file does not exist.
var ErrNotFound = errors.New("session not found")

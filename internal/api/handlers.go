package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bc-dunia/tvbridge/internal/broker"
	"github.com/bc-dunia/tvbridge/internal/config"
	"github.com/bc-dunia/tvbridge/internal/events"
	"github.com/bc-dunia/tvbridge/internal/otel"
	"github.com/bc-dunia/tvbridge/internal/sysinfo"
)

// handleFunctions serves POST (device upload) and GET (controller read)
// on /api/functions.
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadFunctions(w, r)
	case http.MethodGet:
		s.handleGetFunctions(w, r)
	default:
		s.writeMethodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleUploadFunctions(w http.ResponseWriter, r *http.Request) {
	var req UploadFunctionsRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	ip := clientIP(r)
	s.liveness.Touch(ip, req.DeviceInfo)
	s.registry.Update(req.Functions, req.DeviceInfo)

	events.GetGlobalEventLogger().LogFunctionsUploaded(len(req.Functions), ip)

	s.writeJSON(w, http.StatusOK, &AckResponse{
		Success:   true,
		Message:   "Functions updated",
		Timestamp: s.clock.ISO(),
	})
}

func (s *Server) handleGetFunctions(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	s.writeJSON(w, http.StatusOK, &GetFunctionsResponse{
		Functions:      snap.Functions,
		DeviceInfo:     snap.DeviceInfo,
		Timestamp:      s.clock.ISO(),
		ConnectionInfo: snap.ConnectionInfo,
	})
}

func (s *Server) handleKeepAlive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, "POST")
		return
	}

	s.liveness.Touch(clientIP(r), nil)
	s.writeJSON(w, http.StatusOK, &AckResponse{
		Success:   true,
		Message:   "Keep-alive received",
		Timestamp: s.clock.ISO(),
	})
}

// handleRemoteCommand serves POST (controller enqueue) and GET (device
// single pull) on /api/remote-command.
func (s *Server) handleRemoteCommand(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleEnqueue(w, r)
	case http.MethodGet:
		s.handleDispatch(w, r)
	default:
		s.writeMethodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueCommandRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	id, err := s.relay.Enqueue(broker.Command{
		ID:            req.ID,
		Function:      req.Function,
		Parameters:    req.Parameters,
		SourceCode:    req.SourceCode,
		ExecutionMode: broker.ExecutionMode(req.ExecutionMode),
	})
	if err != nil {
		switch {
		case errors.Is(err, broker.ErrDeviceUnavailable):
			s.writeError(w, http.StatusServiceUnavailable, ErrCodeTVNotConnected)
		case errors.Is(err, broker.ErrDuplicateCommandID):
			s.writeError(w, http.StatusBadRequest, ErrCodeDuplicateID)
		case errors.Is(err, broker.ErrMissingFunction):
			s.writeError(w, http.StatusBadRequest, "function is required")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	otel.GetGlobalMetrics().RecordEnqueued(r.Context(), req.Function)
	s.writeJSON(w, http.StatusOK, &EnqueueCommandResponse{
		Success:   true,
		CommandID: id,
	})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	s.liveness.Touch(clientIP(r), nil)

	cmd, ok := s.relay.Dispatch()
	if !ok {
		s.writeJSON(w, http.StatusOK, &DispatchResponse{HasCommand: false})
		return
	}

	otel.GetGlobalMetrics().RecordDispatched(r.Context(), 1, s.clock.NowMs()-cmd.QueuedAt)
	s.writeJSON(w, http.StatusOK, &DispatchResponse{
		HasCommand: true,
		Command:    cmd,
	})
}

func (s *Server) handleRemoteCommandBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	s.liveness.Touch(clientIP(r), nil)

	// Invalid or absent batchSize values fall back to the default.
	batchSize := config.DefaultBatchSize
	if raw := r.URL.Query().Get("batchSize"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			batchSize = parsed
		}
	}

	commands, remaining := s.relay.DispatchBatch(batchSize)
	now := s.clock.NowMs()
	for _, cmd := range commands {
		otel.GetGlobalMetrics().RecordDispatched(r.Context(), 1, now-cmd.QueuedAt)
	}
	if commands == nil {
		commands = []*broker.Command{}
	}

	s.writeJSON(w, http.StatusOK, &DispatchBatchResponse{
		HasCommands:      len(commands) > 0,
		Commands:         commands,
		RemainingInQueue: remaining,
	})
}

func (s *Server) handlePostResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, "POST")
		return
	}

	var res broker.CommandResult
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&res); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if res.CommandID == "" {
		s.writeError(w, http.StatusBadRequest, "commandId is required")
		return
	}

	s.liveness.Touch(clientIP(r), nil)

	// The slot write inside PostResult precedes all telemetry below.
	report := s.relay.PostResult(res)

	var roundTrip int64
	if report != nil {
		roundTrip = report.RoundTripMs
	}
	otel.GetGlobalMetrics().RecordResultPosted(r.Context(), res.Success, roundTrip)

	s.writeJSON(w, http.StatusOK, &PostResultResponse{Success: true})
}

func (s *Server) handleDrainResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/execute-response/")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "commandId is required")
		return
	}

	res, state := s.relay.DrainResult(id)
	switch state {
	case broker.DrainReady:
		s.writeJSON(w, http.StatusOK, res)
	case broker.DrainDisconnected:
		s.writeJSON(w, http.StatusOK, &DisconnectedResponse{
			Success: false,
			Error:   ErrCodeTVDisconnected,
		})
	default:
		s.writeJSON(w, http.StatusOK, &WaitingResponse{Waiting: true})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, &StatusResponse{
		Status:         "ok",
		UptimeMs:       time.Since(startedAt).Milliseconds(),
		QueueDepth:     s.relay.QueueDepth(),
		PendingResults: s.relay.PendingResults(),
		FunctionCount:  s.registry.Count(),
		ConnectionInfo: s.liveness.Status(),
		Host:           sysinfo.Collect(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, &ReadyResponse{Status: "ok", Ready: s.IsRunning()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, &ErrorResponse{Error: message})
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// limitedBody returns a reader that limits the body size.
// Use this before json.NewDecoder to prevent memory exhaustion.
func limitedBody(w http.ResponseWriter, r *http.Request) io.Reader {
	return http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)
}

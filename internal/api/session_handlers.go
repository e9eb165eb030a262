package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bc-dunia/tvbridge/internal/session"
)

func (s *Server) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, "POST")
		return
	}

	var req session.SaveRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Action != "create" && req.Action != "merge" {
		s.writeError(w, http.StatusBadRequest, "action must be create or merge")
		return
	}
	if req.Data.Results == nil && req.Data.Session == nil {
		s.writeError(w, http.StatusBadRequest, "data is required")
		return
	}

	result, err := s.sessions.Save(req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, &SessionSaveResponse{
		Success:    true,
		SessionID:  result.SessionID,
		TotalFiles: result.TotalFiles,
		NewFiles:   result.NewFiles,
		RunID:      result.RunID,
		Size:       result.Size,
	})
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	summaries, err := s.sessions.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scan/session/load/")
	sess, err := s.sessions.Load(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, &SessionLoadResponse{
		SessionID: sess.SessionID,
		Metadata:  sess.Metadata,
		Data:      sess.Data,
	})
}

func (s *Server) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scan/session/resume/")
	view, err := s.sessions.Resume(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeMethodNotAllowed(w, "DELETE")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scan/session/delete/")
	if err := s.sessions.Delete(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &DeleteSessionResponse{Success: true})
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, ErrCodeSessionNotFound)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// handleSaveToPublic writes controller-provided files into the public
// directory so the device runtime can fetch them over plain HTTP.
func (s *Server) handleSaveToPublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, "POST")
		return
	}

	var req SaveToPublicRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "files must be an array")
		return
	}
	if req.Files == nil {
		s.writeError(w, http.StatusBadRequest, "files is required")
		return
	}

	if err := os.MkdirAll(s.publicDir, 0755); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	saved := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		// Strip any path components so writes stay inside publicDir.
		name := filepath.Base(f.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			continue
		}
		if err := os.WriteFile(filepath.Join(s.publicDir, name), []byte(f.Content), 0644); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		saved = append(saved, name)
	}

	s.writeJSON(w, http.StatusOK, &SaveToPublicResponse{
		Success:  true,
		Saved:    saved,
		Location: s.publicDir,
		Message:  "Files saved",
	})
}

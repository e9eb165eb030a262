package api

import (
	"net/http"
	"testing"

	"github.com/bc-dunia/tvbridge/internal/session"
)

func TestSessionEndpoints(t *testing.T) {
	server, _ := startServer(t)

	t.Run("save create", func(t *testing.T) {
		resp := postJSON(t, server.URL()+"/api/scan/session/save", session.SaveRequest{
			SessionID: "scan_alpha",
			Action:    "create",
			Data: session.Data{
				Results: []session.FileRecord{
					{Path: "/etc/hosts", Status: "success"},
					{Path: "/bin/sh", Status: "success", IsBinary: true},
				},
				Session: map[string]interface{}{"status": "paused"},
			},
		})
		var body SessionSaveResponse
		decodeBody(t, resp, &body)
		if resp.StatusCode != http.StatusOK || !body.Success {
			t.Fatalf("save failed: %d %+v", resp.StatusCode, body)
		}
		if body.TotalFiles != 2 || body.NewFiles != 2 || body.RunID != 1 {
			t.Errorf("unexpected save result: %+v", body)
		}
	})

	t.Run("merge adds to the same session", func(t *testing.T) {
		resp := postJSON(t, server.URL()+"/api/scan/session/save", session.SaveRequest{
			SessionID: "scan_alpha",
			Action:    "merge",
			Data: session.Data{
				Results: []session.FileRecord{{Path: "/etc/passwd", Status: "failed"}},
			},
		})
		var body SessionSaveResponse
		decodeBody(t, resp, &body)
		if body.TotalFiles != 3 || body.NewFiles != 1 || body.RunID != 2 {
			t.Errorf("unexpected merge result: %+v", body)
		}
	})

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(server.URL() + "/api/scan/sessions")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var summaries []session.Summary
		decodeBody(t, resp, &summaries)
		if len(summaries) != 1 {
			t.Fatalf("expected 1 summary, got %d", len(summaries))
		}
		if summaries[0].SessionID != "scan_alpha" {
			t.Errorf("expected scan_alpha, got %s", summaries[0].SessionID)
		}
		if !summaries[0].CanResume {
			t.Error("expected paused session resumable")
		}
	})

	t.Run("load", func(t *testing.T) {
		resp, err := http.Get(server.URL() + "/api/scan/session/load/scan_alpha")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var body SessionLoadResponse
		decodeBody(t, resp, &body)
		if body.SessionID != "scan_alpha" {
			t.Errorf("expected scan_alpha, got %s", body.SessionID)
		}
		if body.Metadata.TotalFiles != 3 || body.Metadata.BinaryCount != 1 {
			t.Errorf("unexpected metadata: %+v", body.Metadata)
		}
	})

	t.Run("resume", func(t *testing.T) {
		resp, err := http.Get(server.URL() + "/api/scan/session/resume/scan_alpha")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var view session.ResumeView
		decodeBody(t, resp, &view)
		if view.NextRunID != 3 {
			t.Errorf("expected next run 3, got %d", view.NextRunID)
		}
		if len(view.Results) != 3 {
			t.Errorf("expected 3 results, got %d", len(view.Results))
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, server.URL()+"/api/scan/session/delete/scan_alpha", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var body DeleteSessionResponse
		decodeBody(t, resp, &body)
		if !body.Success {
			t.Error("expected delete to succeed")
		}

		loadResp, err := http.Get(server.URL() + "/api/scan/session/load/scan_alpha")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var errBody ErrorResponse
		decodeBody(t, loadResp, &errBody)
		if loadResp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", loadResp.StatusCode)
		}
		if errBody.Error != ErrCodeSessionNotFound {
			t.Errorf("expected %s, got %s", ErrCodeSessionNotFound, errBody.Error)
		}
	})
}

func TestSessionSaveValidation(t *testing.T) {
	server, _ := startServer(t)

	t.Run("unknown action", func(t *testing.T) {
		resp := postJSON(t, server.URL()+"/api/scan/session/save", map[string]interface{}{
			"sessionId": "x",
			"action":    "upsert",
			"data":      map[string]interface{}{"results": []interface{}{}},
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("missing data", func(t *testing.T) {
		resp := postJSON(t, server.URL()+"/api/scan/session/save", map[string]interface{}{
			"sessionId": "x",
			"action":    "create",
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("delete of a missing session", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, server.URL()+"/api/scan/session/delete/ghost", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

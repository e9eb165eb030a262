package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store
}

func TestSanitizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"scan_2026-01-01", "scan_2026-01-01"},
		{"../../etc/passwd", "______etc_passwd"},
		{"my scan #1", "my_scan__1"},
		{"ok_ID-42", "ok_ID-42"},
	}
	for _, c := range cases {
		if got := SanitizeID(c.in); got != c.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStoreSave(t *testing.T) {
	t.Run("create writes a session file", func(t *testing.T) {
		store := newTestStore(t)

		result, err := store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data: Data{
				Results: []FileRecord{
					{Path: "/a", Status: "success"},
					{Path: "/b", Status: "failed"},
				},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SessionID != "scan_1" {
			t.Errorf("expected session id scan_1, got %s", result.SessionID)
		}
		if result.TotalFiles != 2 || result.NewFiles != 2 {
			t.Errorf("expected 2 total / 2 new, got %d/%d", result.TotalFiles, result.NewFiles)
		}
		if result.RunID != 1 {
			t.Errorf("expected run 1, got %d", result.RunID)
		}
		if result.Size <= 0 {
			t.Error("expected positive file size")
		}

		if _, err := os.Stat(filepath.Join(store.BaseDir(), "scan_1.json")); err != nil {
			t.Errorf("expected session file: %v", err)
		}
	})

	t.Run("synthesizes id when absent", func(t *testing.T) {
		store := newTestStore(t)
		store.nowFunc = func() time.Time {
			return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		}

		result, err := store.Save(SaveRequest{Action: "create", Data: Data{Results: []FileRecord{{Path: "/a", Status: "success"}}}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SessionID != "scan_2026-01-02T03-04-05Z" {
			t.Errorf("unexpected synthesized id %s", result.SessionID)
		}
	})

	t.Run("sanitizes the caller id", func(t *testing.T) {
		store := newTestStore(t)
		result, err := store.Save(SaveRequest{
			SessionID: "../scan one",
			Action:    "create",
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "success"}}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SessionID != "___scan_one" {
			t.Errorf("unexpected sanitized id %s", result.SessionID)
		}
	})

	t.Run("merge accumulates across runs", func(t *testing.T) {
		store := newTestStore(t)

		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "failed"}}},
		})
		result, err := store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "merge",
			Data: Data{Results: []FileRecord{
				{Path: "/a", Status: "success"},
				{Path: "/b", Status: "success"},
			}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.TotalFiles != 2 || result.NewFiles != 1 {
			t.Errorf("expected 2 total / 1 new, got %d/%d", result.TotalFiles, result.NewFiles)
		}
		if result.RunID != 2 {
			t.Errorf("expected run 2, got %d", result.RunID)
		}

		sess, err := store.Load("scan_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Metadata.SuccessCount != 2 {
			t.Errorf("expected both records success after upgrade, got %d", sess.Metadata.SuccessCount)
		}
		if len(sess.Runs) != 2 {
			t.Errorf("expected 2 runs, got %d", len(sess.Runs))
		}
	})

	t.Run("merge of a missing session behaves as create", func(t *testing.T) {
		store := newTestStore(t)
		result, err := store.Save(SaveRequest{
			SessionID: "ghost",
			Action:    "merge",
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "success"}}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RunID != 1 || result.NewFiles != 1 {
			t.Errorf("expected fresh session, got run %d new %d", result.RunID, result.NewFiles)
		}
	})

	t.Run("explicit run id updates the run entry in place", func(t *testing.T) {
		store := newTestStore(t)
		run := 1

		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			RunID:     &run,
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "success"}}},
		})
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "merge",
			RunID:     &run,
			Data: Data{Results: []FileRecord{
				{Path: "/a", Status: "success"},
				{Path: "/b", Status: "success"},
			}},
		})

		sess, err := store.Load("scan_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sess.Runs) != 1 {
			t.Fatalf("expected a single run entry, got %d", len(sess.Runs))
		}
		if sess.Runs[0].FilesScanned != 2 {
			t.Errorf("expected run entry updated to 2 files, got %d", sess.Runs[0].FilesScanned)
		}
	})

	t.Run("session state carries run status and duration", func(t *testing.T) {
		store := newTestStore(t)
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data: Data{
				Results: []FileRecord{{Path: "/a", Status: "success"}},
				Session: map[string]interface{}{
					"status":    "paused",
					"startTime": float64(1000),
					"endTime":   float64(4000),
				},
			},
		})

		sess, _ := store.Load("scan_1")
		if sess.Runs[0].Status != "paused" {
			t.Errorf("expected run status paused, got %s", sess.Runs[0].Status)
		}
		if sess.Runs[0].Duration != 3000 {
			t.Errorf("expected duration 3000, got %f", sess.Runs[0].Duration)
		}
		if sess.Metadata.Status != "paused" {
			t.Errorf("expected metadata status paused, got %s", sess.Metadata.Status)
		}
	})

	t.Run("file is minified JSON", func(t *testing.T) {
		store := newTestStore(t)
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "success"}}},
		})

		blob, err := os.ReadFile(filepath.Join(store.BaseDir(), "scan_1.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blob) == 0 || blob[len(blob)-1] == '\n' {
			t.Error("expected minified JSON without trailing newline")
		}
		var sess Session
		if err := json.Unmarshal(blob, &sess); err != nil {
			t.Fatalf("file is not valid JSON: %v", err)
		}
		if sess.Version == "" {
			t.Error("expected version to be stamped")
		}
	})
}

func TestStoreList(t *testing.T) {
	t.Run("newest first with resume flags", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store.nowFunc = func() time.Time { return now }

		store.Save(SaveRequest{
			SessionID: "old",
			Action:    "create",
			Data: Data{
				Results: []FileRecord{{Path: "/a", Status: "success"}},
				Session: map[string]interface{}{"status": "completed"},
			},
		})
		now = now.Add(time.Hour)
		store.Save(SaveRequest{
			SessionID: "fresh",
			Action:    "create",
			Data: Data{
				Results: []FileRecord{{Path: "/a", Status: "success"}},
				Session: map[string]interface{}{"status": "paused"},
			},
		})

		summaries, err := store.List()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("expected 2 summaries, got %d", len(summaries))
		}
		if summaries[0].SessionID != "fresh" {
			t.Errorf("expected fresh first, got %s", summaries[0].SessionID)
		}
		if !summaries[0].CanResume {
			t.Error("expected paused session resumable")
		}
		if summaries[1].CanResume {
			t.Error("expected completed session not resumable")
		}
		if !summaries[0].CanBrowse || !summaries[1].CanBrowse {
			t.Error("expected all sessions browsable")
		}
	})

	t.Run("corrupt file surfaces as an error", func(t *testing.T) {
		store := newTestStore(t)
		if err := os.WriteFile(filepath.Join(store.BaseDir(), "bad.json"), []byte("{not json"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.List(); err == nil {
			t.Error("expected an error for a corrupt session file")
		}
	})

	t.Run("ignores non-json entries", func(t *testing.T) {
		store := newTestStore(t)
		os.WriteFile(filepath.Join(store.BaseDir(), "notes.txt"), []byte("hi"), 0644)
		os.Mkdir(filepath.Join(store.BaseDir(), "sub.json"), 0755)

		summaries, err := store.List()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(summaries) != 0 {
			t.Errorf("expected no summaries, got %d", len(summaries))
		}
	})
}

func TestStoreLoadResumeDelete(t *testing.T) {
	t.Run("load missing session", func(t *testing.T) {
		store := newTestStore(t)
		if _, err := store.Load("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("resume returns the next run id", func(t *testing.T) {
		store := newTestStore(t)
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data: Data{
				Results:       []FileRecord{{Path: "/a", Status: "success"}},
				Variables:     map[string]interface{}{"root": "/tmp"},
				DeferredPaths: []string{"/later"},
			},
		})
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "merge",
			Data:      Data{Results: []FileRecord{{Path: "/b", Status: "success"}}},
		})

		view, err := store.Resume("scan_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.NextRunID != 3 {
			t.Errorf("expected next run 3, got %d", view.NextRunID)
		}
		if len(view.Results) != 2 {
			t.Errorf("expected 2 results, got %d", len(view.Results))
		}
		if view.Variables["root"] != "/tmp" {
			t.Errorf("expected variables preserved, got %v", view.Variables)
		}
		if len(view.DeferredPaths) != 1 {
			t.Errorf("expected deferred paths preserved, got %v", view.DeferredPaths)
		}
	})

	t.Run("delete removes the file", func(t *testing.T) {
		store := newTestStore(t)
		store.Save(SaveRequest{
			SessionID: "scan_1",
			Action:    "create",
			Data:      Data{Results: []FileRecord{{Path: "/a", Status: "success"}}},
		})

		if err := store.Delete("scan_1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Load("scan_1"); !errors.Is(err, ErrNotFound) {
			t.Error("expected session gone after delete")
		}
		if err := store.Delete("scan_1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on double delete, got %v", err)
		}
	})
}

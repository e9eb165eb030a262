package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/tvbridge/internal/config"
	"github.com/bc-dunia/tvbridge/internal/events"
)

var idSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID maps any character outside [A-Za-z0-9_-] to an underscore.
func SanitizeID(id string) string {
	return idSanitizer.ReplaceAllString(id, "_")
}

// Store persists sessions as one minified JSON file per session under
// a base directory. Independent sessions are not serialized against each
// other; concurrent saves of the same session are serialized by a
// per-session lock so the merge invariants hold.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	nowFunc func() time.Time
}

// NewStore creates a Store rooted at baseDir, creating the directory if
// it does not exist.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		nowFunc: time.Now,
	}, nil
}

// BaseDir returns the base directory of the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *Store) nowISO() string {
	return s.nowFunc().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// synthesizeID produces the fallback session id: scan_<UTC-iso-without-millis>
// with ':' and '.' replaced by '-'.
func (s *Store) synthesizeID() string {
	iso := s.nowFunc().UTC().Format("2006-01-02T15:04:05Z")
	iso = strings.ReplaceAll(iso, ":", "-")
	iso = strings.ReplaceAll(iso, ".", "-")
	return "scan_" + iso
}

// Save creates or merge-saves a session and reports the post-merge
// aggregate. A merge against a missing or unreadable file proceeds as a
// create.
func (s *Store) Save(req SaveRequest) (*SaveResult, error) {
	id := SanitizeID(req.SessionID)
	if id == "" {
		id = s.synthesizeID()
	}

	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	var existing *Session
	if req.Action == "merge" {
		existing = s.readExisting(id)
	}

	now := s.nowISO()
	preCount := 0
	sess := existing
	if sess == nil {
		sess = &Session{
			SessionID: id,
			Version:   config.SessionFileVersion,
			Created:   now,
		}
	} else {
		preCount = len(sess.Data.Results)
	}

	runID := len(sess.Runs) + 1
	if req.RunID != nil {
		runID = *req.RunID
	}

	sess.Data.Results = mergeResults(sess.Data.Results, req.Data.Results, runID, now)
	if req.Data.Session != nil {
		sess.Data.Session = req.Data.Session
	} else if sess.Data.Session == nil {
		sess.Data.Session = map[string]interface{}{}
	}
	if req.Data.Variables != nil {
		sess.Data.Variables = req.Data.Variables
	} else if sess.Data.Variables == nil {
		sess.Data.Variables = map[string]interface{}{}
	}
	if req.Data.DeferredPaths != nil {
		sess.Data.DeferredPaths = req.Data.DeferredPaths
	} else if sess.Data.DeferredPaths == nil {
		sess.Data.DeferredPaths = []string{}
	}

	run := RunInfo{
		RunID:        runID,
		Timestamp:    now,
		FilesScanned: len(req.Data.Results),
		Duration:     runDuration(sess.Data.Session),
		Status:       runStatus(sess.Data.Session),
	}
	updated := false
	for i := range sess.Runs {
		if sess.Runs[i].RunID == runID {
			sess.Runs[i] = run
			updated = true
			break
		}
	}
	if !updated {
		sess.Runs = append(sess.Runs, run)
	}

	recomputeMetadata(sess)
	sess.LastModified = now

	blob, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.sessionPath(id), blob, 0644); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	result := &SaveResult{
		SessionID:  id,
		TotalFiles: sess.Metadata.TotalFiles,
		NewFiles:   sess.Metadata.TotalFiles - preCount,
		RunID:      runID,
		Size:       int64(len(blob)),
	}
	events.GetGlobalEventLogger().LogSessionSaved(id, req.Action, result.TotalFiles, result.NewFiles, runID)
	return result, nil
}

// readExisting loads the prior session for a merge. A missing file or a
// file that fails to parse yields nil, which makes the merge behave as a
// create.
func (s *Store) readExisting(id string) *Session {
	blob, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil
	}
	return &sess
}

func runStatus(state map[string]interface{}) string {
	if status, ok := state["status"].(string); ok && status != "" {
		return status
	}
	return "completed"
}

// List enumerates session files newest first. Unlike the merge read
// path, a corrupt file here surfaces as an error.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read session file %s: %w", entry.Name(), err)
		}
		var sess Session
		if err := json.Unmarshal(blob, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse session file %s: %w", entry.Name(), err)
		}

		status := sess.Metadata.Status
		summaries = append(summaries, Summary{
			SessionID:    sess.SessionID,
			Name:         sess.Metadata.Name,
			Status:       status,
			TotalFiles:   sess.Metadata.TotalFiles,
			SuccessCount: sess.Metadata.SuccessCount,
			FailedCount:  sess.Metadata.FailedCount,
			TotalRuns:    sess.Metadata.TotalRuns,
			LastModified: sess.LastModified,
			Size:         info.Size(),
			CanResume:    status == "paused" || status == "running",
			CanBrowse:    true,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastModified > summaries[j].LastModified
	})
	return summaries, nil
}

// Load returns the full session envelope.
func (s *Store) Load(id string) (*Session, error) {
	id = SanitizeID(id)
	blob, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// Resume returns the resume envelope with the next run id.
func (s *Store) Resume(id string) (*ResumeView, error) {
	sess, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	return &ResumeView{
		SessionID:     sess.SessionID,
		Session:       sess.Data.Session,
		Results:       sess.Data.Results,
		Variables:     sess.Data.Variables,
		DeferredPaths: sess.Data.DeferredPaths,
		NextRunID:     len(sess.Runs) + 1,
	}, nil
}

// Delete removes the session file.
func (s *Store) Delete(id string) error {
	id = SanitizeID(id)

	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.sessionPath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	events.GetGlobalEventLogger().LogSessionDeleted(id)
	return nil
}

package session

import "time"

// mergeResults folds the incoming records of one run into the existing
// path-keyed result set. The returned slice preserves existing order and
// appends newly discovered paths in upload order.
//
// Invariants:
//   - path-keyed union; later uploads override size and timestamp, and
//     upgrade status to success; a non-success upload never downgrades.
//   - binary content is never persisted: once either side reports
//     isBinary the content is dropped for good.
//   - extractedPaths, generatedPaths, ignoredPaths and variableReferences
//     are set unions; debugLog entries are appended.
//   - discoveryMethod, discoveredFrom and isPlaceholder are latched from
//     the first observation.
//   - scanHistory gains exactly one entry per distinct runId; within the
//     same run the last entry is updated in place when the status changed.
func mergeResults(existing, incoming []FileRecord, runID int, now string) []FileRecord {
	merged := make([]FileRecord, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i := range merged {
		index[merged[i].Path] = i
	}

	for _, inc := range incoming {
		if inc.Path == "" {
			continue
		}
		i, ok := index[inc.Path]
		if !ok {
			merged = append(merged, newRecord(inc, runID, now))
			index[inc.Path] = len(merged) - 1
			continue
		}
		mergeRecord(&merged[i], inc, runID, now)
	}
	return merged
}

// newRecord normalizes a first-seen record: binary content is stripped
// and scan history is seeded for the current run.
func newRecord(inc FileRecord, runID int, now string) FileRecord {
	rec := inc
	if rec.IsBinary {
		rec.Content = nil
	}
	if rec.Timestamp == "" {
		rec.Timestamp = now
	}
	if len(rec.ScanHistory) == 0 {
		rec.ScanHistory = []ScanHistoryEntry{{
			RunID:     runID,
			Status:    rec.Status,
			Timestamp: rec.Timestamp,
		}}
	}
	return rec
}

func mergeRecord(dst *FileRecord, inc FileRecord, runID int, now string) {
	if inc.Size != nil {
		dst.Size = inc.Size
	}
	if inc.Timestamp != "" {
		dst.Timestamp = inc.Timestamp
	} else {
		dst.Timestamp = now
	}

	// Success is sticky: an upload can upgrade but never downgrade.
	if inc.Status == "success" {
		dst.Status = "success"
	}

	if inc.IsBinary {
		dst.IsBinary = true
	}
	if dst.IsBinary {
		dst.Content = nil
	} else if inc.Content != nil {
		dst.Content = inc.Content
	}

	dst.ExtractedPaths = unionStrings(dst.ExtractedPaths, inc.ExtractedPaths)
	dst.GeneratedPaths = unionStrings(dst.GeneratedPaths, inc.GeneratedPaths)
	dst.IgnoredPaths = unionStrings(dst.IgnoredPaths, inc.IgnoredPaths)
	dst.VariableReferences = unionStrings(dst.VariableReferences, inc.VariableReferences)
	dst.DebugLog = append(dst.DebugLog, inc.DebugLog...)

	if dst.DiscoveryMethod == "" {
		dst.DiscoveryMethod = inc.DiscoveryMethod
	}
	if dst.DiscoveredFrom == "" {
		dst.DiscoveredFrom = inc.DiscoveredFrom
	}

	appendScanHistory(dst, inc.Status, runID, now)
}

func appendScanHistory(dst *FileRecord, status string, runID int, now string) {
	n := len(dst.ScanHistory)
	if n > 0 && dst.ScanHistory[n-1].RunID == runID {
		last := &dst.ScanHistory[n-1]
		if last.Status != status {
			last.Status = status
			last.Timestamp = now
		}
		return
	}
	dst.ScanHistory = append(dst.ScanHistory, ScanHistoryEntry{
		RunID:     runID,
		Status:    status,
		Timestamp: now,
	})
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// recomputeMetadata fully recomputes aggregate counts from the merged
// result set and run list.
func recomputeMetadata(s *Session) {
	m := Metadata{
		Name:      s.Metadata.Name,
		TotalRuns: len(s.Runs),
	}
	if m.Name == "" {
		m.Name = s.SessionID
	}
	for i := range s.Data.Results {
		m.TotalFiles++
		rec := &s.Data.Results[i]
		switch rec.Status {
		case "success":
			m.SuccessCount++
		case "failed", "error":
			m.FailedCount++
		}
		if rec.IsBinary {
			m.BinaryCount++
		} else {
			m.TextCount++
		}
	}
	if status, ok := s.Data.Session["status"].(string); ok {
		m.Status = status
	} else {
		m.Status = s.Metadata.Status
	}
	s.Metadata = m
}

// runDuration computes the run duration in milliseconds from the
// reported session state's startTime/endTime, 0 when either is missing.
// Both epoch-millisecond numbers and RFC 3339 strings are accepted.
func runDuration(state map[string]interface{}) float64 {
	start, okStart := instantMs(state["startTime"])
	end, okEnd := instantMs(state["endTime"])
	if !okStart || !okEnd {
		return 0
	}
	return end - start
}

func instantMs(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return float64(parsed.UnixMilli()), true
		}
	}
	return 0, false
}

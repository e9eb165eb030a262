package broker

import (
	"testing"
	"time"
)

// stepClock returns a now-func that starts at base and advances by step
// on each call.
func stepClock(base int64, step int64) func() time.Time {
	current := base - step
	return func() time.Time {
		current += step
		return time.UnixMilli(current)
	}
}

func TestTimingTracker(t *testing.T) {
	t.Run("full lifecycle", func(t *testing.T) {
		tr := NewTimingTracker()
		tr.nowFunc = stepClock(1000, 100)

		tr.TrackQueued("cmd_1", "getVolume") // queuedAt = 1000

		wait, ok := tr.TrackSent("cmd_1") // sentAt = 1100
		if !ok {
			t.Fatal("expected TrackSent to find the record")
		}
		if wait != 100 {
			t.Errorf("expected queue wait 100, got %d", wait)
		}

		tv := 42.5
		report := tr.TrackReceived("cmd_1", &tv) // receivedAt = 1200
		if report == nil {
			t.Fatal("expected a timing report")
		}
		if report.QueueWaitMs != 100 {
			t.Errorf("expected queueWaitMs 100, got %d", report.QueueWaitMs)
		}
		if report.RoundTripMs != 100 {
			t.Errorf("expected roundTripMs 100, got %d", report.RoundTripMs)
		}
		if report.TotalMs != 200 {
			t.Errorf("expected totalMs 200, got %d", report.TotalMs)
		}
		if report.TVProcessingTimeMs == nil || *report.TVProcessingTimeMs != 42.5 {
			t.Errorf("expected tvProcessingTimeMs 42.5, got %v", report.TVProcessingTimeMs)
		}

		total, ok := tr.GetTotalTime("cmd_1")
		if !ok || total != 200 {
			t.Errorf("expected total 200, got %d (ok=%v)", total, ok)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		tr := NewTimingTracker()

		if _, ok := tr.TrackSent("nope"); ok {
			t.Error("expected TrackSent to miss")
		}
		if report := tr.TrackReceived("nope", nil); report != nil {
			t.Error("expected nil report for unknown id")
		}
		if rec := tr.GetTiming("nope"); rec != nil {
			t.Error("expected nil record for unknown id")
		}
	})

	t.Run("result without dispatch", func(t *testing.T) {
		tr := NewTimingTracker()
		tr.nowFunc = stepClock(1000, 50)

		tr.TrackQueued("cmd_1", "ping")
		report := tr.TrackReceived("cmd_1", nil)
		if report == nil {
			t.Fatal("expected a timing report")
		}
		if report.QueueWaitMs != 0 || report.RoundTripMs != 0 {
			t.Errorf("expected zero queue wait and round trip, got %d/%d", report.QueueWaitMs, report.RoundTripMs)
		}
		if report.TotalMs != 50 {
			t.Errorf("expected totalMs 50, got %d", report.TotalMs)
		}
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		tr := NewTimingTracker()
		tr.TrackQueued("cmd_1", "ping")

		snap := tr.GetTiming("cmd_1")
		if snap == nil {
			t.Fatal("expected a record")
		}
		snap.QueuedAt = -1

		again := tr.GetTiming("cmd_1")
		if again.QueuedAt == -1 {
			t.Error("snapshot mutation leaked into the tracker")
		}
	})
}

func TestScheduleCleanup(t *testing.T) {
	t.Run("removes the record after the delay", func(t *testing.T) {
		tr := NewTimingTracker()
		defer tr.Close()

		tr.TrackQueued("cmd_1", "ping")
		tr.ScheduleCleanup("cmd_1", 10*time.Millisecond)

		deadline := time.Now().Add(2 * time.Second)
		for tr.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if tr.Len() != 0 {
			t.Error("expected record to be cleaned up")
		}
	})

	t.Run("reschedule replaces the pending timer", func(t *testing.T) {
		tr := NewTimingTracker()
		defer tr.Close()

		tr.TrackQueued("cmd_1", "ping")
		tr.ScheduleCleanup("cmd_1", time.Hour)
		tr.ScheduleCleanup("cmd_1", 10*time.Millisecond)

		deadline := time.Now().Add(2 * time.Second)
		for tr.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if tr.Len() != 0 {
			t.Error("expected the shorter timer to win")
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		tr := NewTimingTracker()
		tr.TrackQueued("cmd_1", "ping")
		tr.Remove("cmd_1")
		tr.Remove("cmd_1")
		if tr.Len() != 0 {
			t.Errorf("expected empty tracker, got %d records", tr.Len())
		}
	})
}

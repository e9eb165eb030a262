package broker

import (
	"sync"
	"time"
)

// TimingRecord holds the lifecycle instants of one command, all in
// unix milliseconds. SentAt and ReceivedAt are nil until the matching
// transition happens.
type TimingRecord struct {
	Function           string   `json:"function,omitempty"`
	QueuedAt           int64    `json:"queuedAt"`
	SentAt             *int64   `json:"sentAt,omitempty"`
	ReceivedAt         *int64   `json:"receivedAt,omitempty"`
	TVProcessingTimeMs *float64 `json:"tvProcessingTimeMs,omitempty"`
}

// TimingReport is the derived latency breakdown returned when a result
// arrives from the device.
type TimingReport struct {
	QueueWaitMs        int64    `json:"queueWaitMs"`
	RoundTripMs        int64    `json:"roundTripMs"`
	TotalMs            int64    `json:"totalMs"`
	TVProcessingTimeMs *float64 `json:"tvProcessingTimeMs,omitempty"`
}

// TimingTracker records queued/dispatched/completed instants per command
// and computes derived latencies. Records are removed by ScheduleCleanup;
// readers of a cleaned record get nil.
type TimingTracker struct {
	mu      sync.Mutex
	records map[string]*TimingRecord
	timers  map[string]*time.Timer
	nowFunc func() time.Time
}

// NewTimingTracker creates an empty TimingTracker.
func NewTimingTracker() *TimingTracker {
	return &TimingTracker{
		records: make(map[string]*TimingRecord),
		timers:  make(map[string]*time.Timer),
		nowFunc: time.Now,
	}
}

// TrackQueued records the enqueue instant for a command. A second call
// for the same id overwrites the record.
func (t *TimingTracker) TrackQueued(id, function string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[id] = &TimingRecord{
		Function: function,
		QueuedAt: t.nowFunc().UnixMilli(),
	}
}

// TrackSent records the dispatch instant and returns the queue wait in
// milliseconds. Returns false if the command was never queued.
func (t *TimingTracker) TrackSent(id string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return 0, false
	}

	now := t.nowFunc().UnixMilli()
	rec.SentAt = &now
	return now - rec.QueuedAt, true
}

// TrackReceived records the completion instant and returns the full
// latency report. Returns nil if the command was never queued.
func (t *TimingTracker) TrackReceived(id string, tvProcessingTimeMs *float64) *TimingReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return nil
	}

	now := t.nowFunc().UnixMilli()
	rec.ReceivedAt = &now
	rec.TVProcessingTimeMs = tvProcessingTimeMs

	report := &TimingReport{
		TotalMs:            now - rec.QueuedAt,
		TVProcessingTimeMs: tvProcessingTimeMs,
	}
	if rec.SentAt != nil {
		report.QueueWaitMs = *rec.SentAt - rec.QueuedAt
		report.RoundTripMs = now - *rec.SentAt
	}
	return report
}

// GetTiming returns a snapshot of the record for id, or nil if it was
// never tracked or already cleaned up.
func (t *TimingTracker) GetTiming(id string) *TimingRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return nil
	}
	snapshot := *rec
	return &snapshot
}

// GetTotalTime returns the total elapsed milliseconds for a completed
// command. Returns false when the record is missing or still in flight.
func (t *TimingTracker) GetTotalTime(id string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok || rec.ReceivedAt == nil {
		return 0, false
	}
	return *rec.ReceivedAt - rec.QueuedAt, true
}

// ScheduleCleanup removes the record for id after the given delay.
// Cleanup is idempotent; a record already removed is a no-op.
func (t *TimingTracker) ScheduleCleanup(id string, after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
	}
	t.timers[id] = time.AfterFunc(after, func() {
		t.Remove(id)
	})
}

// Remove deletes the record and any pending cleanup timer for id.
func (t *TimingTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	delete(t.records, id)
}

// Close stops all pending cleanup timers.
func (t *TimingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Len reports the number of live timing records.
func (t *TimingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

package broker

import (
	"sync"
	"time"

	"github.com/bc-dunia/tvbridge/internal/config"
	"github.com/bc-dunia/tvbridge/internal/events"
)

// DrainState is the outcome of a result drain attempt.
type DrainState int

const (
	// DrainReady means the result was present and has been consumed.
	DrainReady DrainState = iota
	// DrainWaiting means no result yet; the device is alive and the
	// controller should re-poll.
	DrainWaiting
	// DrainDisconnected means no result and the device has gone stale.
	DrainDisconnected
)

// Relay is the command relay: an ingress FIFO of pending commands and a
// result slot map keyed by command id. All mutations are serialized
// under a single mutex; the critical sections are O(1) bookkeeping plus
// one queue or map operation.
type Relay struct {
	mu       sync.Mutex
	queue    []*Command
	results  map[string]*CommandResult
	reserved map[string]struct{} // ids pending or with an undrained result

	clock    *Clock
	timing   *TimingTracker
	liveness *LivenessTracker

	cleanupDelay time.Duration
}

// NewRelay creates a Relay wired to the given clock, timing tracker and
// liveness tracker.
func NewRelay(clock *Clock, timing *TimingTracker, liveness *LivenessTracker) *Relay {
	return &Relay{
		results:      make(map[string]*CommandResult),
		reserved:     make(map[string]struct{}),
		clock:        clock,
		timing:       timing,
		liveness:     liveness,
		cleanupDelay: config.TimingCleanupDelayMs * time.Millisecond,
	}
}

// Enqueue appends a command to the FIFO and returns its id. A
// caller-supplied id is used verbatim; when absent the broker assigns
// one. Rejected when the device is stale or the id is already reserved
// by a pending command or an undrained result.
func (r *Relay) Enqueue(cmd Command) (string, error) {
	if cmd.Function == "" {
		return "", ErrMissingFunction
	}
	if !r.liveness.IsAlive() {
		return "", ErrDeviceUnavailable
	}

	if cmd.ExecutionMode == "" {
		cmd.ExecutionMode = ExecutionModeDirect
	}
	if cmd.Parameters == nil {
		cmd.Parameters = []interface{}{}
	}
	cmd.QueuedAt = r.clock.NowMs()
	cmd.Timestamp = r.clock.ISO()

	r.mu.Lock()
	if cmd.ID == "" {
		cmd.ID = r.clock.NextCommandID()
	} else if _, taken := r.reserved[cmd.ID]; taken {
		r.mu.Unlock()
		return "", ErrDuplicateCommandID
	}
	r.reserved[cmd.ID] = struct{}{}
	r.queue = append(r.queue, &cmd)
	r.mu.Unlock()

	r.timing.TrackQueued(cmd.ID, cmd.Function)
	events.GetGlobalEventLogger().LogCommandEnqueued(cmd.ID, cmd.Function, len(cmd.Parameters))
	return cmd.ID, nil
}

// Dispatch pops the head of the FIFO atomically. Returns false when the
// queue is empty.
func (r *Relay) Dispatch() (*Command, bool) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return nil, false
	}
	cmd := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()

	queueWaitMs, _ := r.timing.TrackSent(cmd.ID)
	events.GetGlobalEventLogger().LogCommandDispatched(cmd.ID, cmd.Function, queueWaitMs)
	return cmd, true
}

// DispatchBatch pops up to batchSize commands in FIFO order in one
// atomic step and reports how many remain queued. batchSize is clamped
// to [MinBatchSize, MaxBatchSize].
func (r *Relay) DispatchBatch(batchSize int) ([]*Command, int) {
	if batchSize < config.MinBatchSize {
		batchSize = config.MinBatchSize
	}
	if batchSize > config.MaxBatchSize {
		batchSize = config.MaxBatchSize
	}

	r.mu.Lock()
	n := batchSize
	if n > len(r.queue) {
		n = len(r.queue)
	}
	batch := make([]*Command, n)
	copy(batch, r.queue[:n])
	r.queue = r.queue[n:]
	remaining := len(r.queue)
	r.mu.Unlock()

	logger := events.GetGlobalEventLogger()
	for _, cmd := range batch {
		queueWaitMs, _ := r.timing.TrackSent(cmd.ID)
		logger.LogCommandDispatched(cmd.ID, cmd.Function, queueWaitMs)
	}
	return batch, remaining
}

// PostResult stores the device's result in the slot map. The slot write
// happens before any timing, logging or cleanup work: the result drainer
// may race with this call and must be able to observe the result the
// moment this function has stored it.
//
// Results for unknown command ids are accepted and stored; a controller
// still polling will drain them.
func (r *Relay) PostResult(res CommandResult) *TimingReport {
	r.mu.Lock()
	stored := res
	r.results[res.CommandID] = &stored
	r.reserved[res.CommandID] = struct{}{}
	r.mu.Unlock()

	report := r.timing.TrackReceived(res.CommandID, res.TVProcessingTimeMs)
	r.timing.ScheduleCleanup(res.CommandID, r.cleanupDelay)
	events.GetGlobalEventLogger().LogResultReceived(res.CommandID, res.Success, report)
	return report
}

// DrainResult atomically gets and deletes the result slot for id.
// When no result is stored, the state distinguishes a live device
// (waiting, caller re-polls) from a stale one (disconnected).
func (r *Relay) DrainResult(id string) (*CommandResult, DrainState) {
	r.mu.Lock()
	res, ok := r.results[id]
	if ok {
		delete(r.results, id)
		delete(r.reserved, id)
	}
	r.mu.Unlock()

	if ok {
		events.GetGlobalEventLogger().LogResultDrained(id, res.Success)
		return res, DrainReady
	}
	if !r.liveness.IsAlive() {
		return nil, DrainDisconnected
	}
	return nil, DrainWaiting
}

// QueueDepth reports the number of commands waiting for dispatch.
func (r *Relay) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// PendingResults reports the number of undrained result slots.
func (r *Relay) PendingResults() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

package broker

import "sync"

// RegistrySnapshot is the controller-facing projection of the uploaded
// function inventory. Functions and device info are projected empty when
// the device is stale; connection info always reflects the effective
// connected flag.
type RegistrySnapshot struct {
	Functions      []FunctionEntry        `json:"functions"`
	DeviceInfo     map[string]interface{} `json:"deviceInfo"`
	LastUploadedAt *int64                 `json:"lastUploadedAt,omitempty"`
	ConnectionInfo ConnectionInfo         `json:"connectionInfo"`
}

// FunctionRegistry holds the most recent function inventory uploaded by
// the device. Each upload replaces the prior inventory wholesale.
type FunctionRegistry struct {
	mu             sync.Mutex
	functions      []FunctionEntry
	deviceInfo     map[string]interface{}
	lastUploadedAt int64

	liveness *LivenessTracker
	clock    *Clock
}

// NewFunctionRegistry creates an empty registry projected over the given
// liveness tracker.
func NewFunctionRegistry(clock *Clock, liveness *LivenessTracker) *FunctionRegistry {
	return &FunctionRegistry{
		clock:    clock,
		liveness: liveness,
	}
}

// Update replaces the stored inventory with the uploaded one.
func (fr *FunctionRegistry) Update(functions []FunctionEntry, deviceInfo map[string]interface{}) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if functions == nil {
		functions = []FunctionEntry{}
	}
	fr.functions = functions
	fr.deviceInfo = deviceInfo
	fr.lastUploadedAt = fr.clock.NowMs()
}

// Snapshot returns the current projection. A stale device yields an
// empty function list and nil device info.
func (fr *FunctionRegistry) Snapshot() RegistrySnapshot {
	alive := fr.liveness.IsAlive()

	fr.mu.Lock()
	defer fr.mu.Unlock()

	snap := RegistrySnapshot{
		Functions:      []FunctionEntry{},
		ConnectionInfo: fr.liveness.Status(),
	}
	if fr.lastUploadedAt > 0 {
		ts := fr.lastUploadedAt
		snap.LastUploadedAt = &ts
	}
	if alive {
		snap.Functions = append(snap.Functions, fr.functions...)
		snap.DeviceInfo = fr.deviceInfo
	}
	return snap
}

// Count reports the number of stored functions regardless of liveness.
func (fr *FunctionRegistry) Count() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return len(fr.functions)
}

package broker

import (
	"context"
	"sync"
	"time"

	"github.com/bc-dunia/tvbridge/internal/config"
	"github.com/bc-dunia/tvbridge/internal/events"
	"github.com/bc-dunia/tvbridge/internal/otel"
)

// LivenessTracker tracks the single device's connection state with a
// sliding staleness window. There is exactly one device per broker
// instance, so the tracker holds one shared ConnectionInfo.
//
// Eviction is lazy: no background timer runs. The connected flag flips
// to false on the first IsAlive or Status call past the window.
type LivenessTracker struct {
	mu         sync.Mutex
	connected  bool
	lastSeen   int64 // unix ms, 0 = never
	ipAddress  string
	deviceInfo map[string]interface{}
	staleAfter time.Duration
	nowFunc    func() time.Time
}

// NewLivenessTracker creates a tracker with the default 10-minute
// staleness window.
func NewLivenessTracker() *LivenessTracker {
	return &LivenessTracker{
		staleAfter: config.StaleAfterMs * time.Millisecond,
		nowFunc:    time.Now,
	}
}

// Touch records device ingress. Called on every device-originated
// request: function upload, keep-alive, command pull, result post.
// A previously stored deviceInfo is preserved unless none exists.
func (lt *LivenessTracker) Touch(ip string, deviceInfo map[string]interface{}) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.connected = true
	lt.lastSeen = lt.nowFunc().UnixMilli()
	if ip != "" {
		lt.ipAddress = ip
	}
	if lt.deviceInfo == nil && deviceInfo != nil {
		lt.deviceInfo = deviceInfo
	}
}

// IsAlive reports whether the device has been seen within the staleness
// window. An expired window transitions connected to false.
func (lt *LivenessTracker) IsAlive() bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.aliveLocked()
}

func (lt *LivenessTracker) aliveLocked() bool {
	if !lt.connected {
		return false
	}
	if lt.nowFunc().UnixMilli()-lt.lastSeen >= lt.staleAfter.Milliseconds() {
		lt.connected = false
		events.GetGlobalEventLogger().LogDeviceStale(lt.lastSeen)
		otel.GetGlobalMetrics().RecordStaleTransition(context.Background())
		return false
	}
	return true
}

// Status returns a snapshot of the connection info after lazy eviction.
func (lt *LivenessTracker) Status() ConnectionInfo {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	info := ConnectionInfo{
		Connected: lt.aliveLocked(),
		IPAddress: lt.ipAddress,
	}
	if lt.lastSeen > 0 {
		seen := lt.lastSeen
		info.LastSeen = &seen
	}
	if lt.deviceInfo != nil {
		info.DeviceInfo = lt.deviceInfo
	}
	return info
}

// DeviceInfo returns the stored device metadata, nil when the device is
// stale or never reported any.
func (lt *LivenessTracker) DeviceInfo() map[string]interface{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if !lt.aliveLocked() {
		return nil
	}
	return lt.deviceInfo
}

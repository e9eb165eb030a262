// Package sysinfo samples host-level metrics for the broker's own
// status report.
package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostMetrics contains system-level metrics collected from the host.
type HostMetrics struct {
	// Hostname is the machine hostname.
	Hostname string `json:"hostname,omitempty"`

	// Platform is the OS/architecture pair, e.g. "linux/amd64".
	Platform string `json:"platform,omitempty"`

	// CPUPercent is the overall CPU usage percentage (0-100).
	CPUPercent float64 `json:"cpu_percent"`

	// MemTotal is the total system memory in bytes.
	MemTotal uint64 `json:"mem_total"`

	// MemUsed is the used system memory in bytes.
	MemUsed uint64 `json:"mem_used"`

	// MemAvailable is the available system memory in bytes.
	MemAvailable uint64 `json:"mem_available,omitempty"`

	// LoadAvg1 is the 1-minute load average.
	LoadAvg1 float64 `json:"load_avg_1,omitempty"`

	// LoadAvg5 is the 5-minute load average.
	LoadAvg5 float64 `json:"load_avg_5,omitempty"`

	// LoadAvg15 is the 15-minute load average.
	LoadAvg15 float64 `json:"load_avg_15,omitempty"`

	// UptimeSeconds is the host uptime.
	UptimeSeconds uint64 `json:"uptime_seconds,omitempty"`
}

// Collect samples the current host metrics. Individual probe failures
// leave the corresponding fields zero rather than failing the sample.
func Collect() *HostMetrics {
	m := &HostMetrics{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info, err := host.Info(); err == nil && info != nil {
		m.Hostname = info.Hostname
		m.UptimeSeconds = info.Uptime
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		m.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		m.MemTotal = memInfo.Total
		m.MemUsed = memInfo.Used
		m.MemAvailable = memInfo.Available
	}

	// Load average (Unix systems)
	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		m.LoadAvg1 = loadAvg.Load1
		m.LoadAvg5 = loadAvg.Load5
		m.LoadAvg15 = loadAvg.Load15
	}

	return m
}

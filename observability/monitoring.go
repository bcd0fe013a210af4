// Package observability keeps the live counters and process figures
// reported by the health endpoint and the heartbeat worker.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MonitoringStats is a point in time view of the server.
type MonitoringStats struct {
	Connections      int       `json:"connections"`
	CommandsApplied  uint64    `json:"commands_applied"`
	CommandsRejected uint64    `json:"commands_rejected"`
	EventsDropped    uint64    `json:"events_dropped"`
	CommandRate      float64   `json:"command_rate"` // commands per second since last refresh
	RSSBytes         uint64    `json:"rss_bytes"`
	CPUPercent       float64   `json:"cpu_percent"`
	AllocMemMb       uint64    `json:"alloc_mem_mb"`
	NumGC            uint32    `json:"num_gc"`
	Goroutines       int       `json:"goroutines"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MonitoringManager aggregates counters. All Incr methods are safe on a
// nil manager so that components can run without monitoring.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	proc        *process.Process
	connections func() int

	applied     atomic.Uint64
	rejected    atomic.Uint64
	dropped     atomic.Uint64
	lastApplied uint64
	lastCheck   time.Time
}

// NewMonitoringManager watches the current process. connections reports
// the number of live WebSocket connections and may be nil.
func NewMonitoringManager(log *slog.Logger, connections func() int) *MonitoringManager {
	now := time.Now()
	mm := &MonitoringManager{
		log:         log,
		connections: connections,
		lastCheck:   now,
		latestStats: MonitoringStats{StartedAt: now, UpdatedAt: now},
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	} else {
		mm.proc = proc
	}
	return mm
}

func (mm *MonitoringManager) IncrApplied() {
	if mm != nil {
		mm.applied.Add(1)
	}
}

func (mm *MonitoringManager) IncrRejected() {
	if mm != nil {
		mm.rejected.Add(1)
	}
}

func (mm *MonitoringManager) IncrDropped() {
	if mm != nil {
		mm.dropped.Add(1)
	}
}

// Refresh recomputes the stats and returns them.
func (mm *MonitoringManager) Refresh() MonitoringStats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	applied := mm.applied.Load()
	if elapsed := now.Sub(mm.lastCheck).Seconds(); elapsed > 0 {
		mm.latestStats.CommandRate = float64(applied-mm.lastApplied) / elapsed
	}
	mm.lastApplied = applied
	mm.lastCheck = now

	mm.latestStats.CommandsApplied = applied
	mm.latestStats.CommandsRejected = mm.rejected.Load()
	mm.latestStats.EventsDropped = mm.dropped.Load()
	if mm.connections != nil {
		mm.latestStats.Connections = mm.connections()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.Goroutines = runtime.NumGoroutine()

	if mm.proc != nil {
		if memInfo, err := mm.proc.MemoryInfo(); err == nil {
			mm.latestStats.RSSBytes = memInfo.RSS
		} else {
			mm.log.Debug("Error while finding process ram usage", "error", err)
		}
		if cpu, err := mm.proc.CPUPercent(); err == nil {
			mm.latestStats.CPUPercent = cpu
		} else {
			mm.log.Debug("Error while finding process cpu usage", "error", err)
		}
	}
	mm.latestStats.UpdatedAt = now
	return mm.latestStats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}

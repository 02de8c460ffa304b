// Package health builds process and channel health snapshots for the
// /healthz endpoint and periodic status logging.
package health

import (
	"context"
	"runtime"
	"time"
)

type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// Snapshot is the health report. Status is "degraded" when any channel
// reports unhealthy.
type Snapshot struct {
	Status     string          `json:"status"`
	Goroutines int             `json:"goroutines"`
	Memory     MemoryInfo      `json:"memory"`
	Runtime    RuntimeInfo     `json:"runtime"`
	Channels   map[string]bool `json:"channels,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// ChannelChecker reports per-channel connectivity.
type ChannelChecker interface {
	HealthAll(ctx context.Context) map[string]bool
}

func Collect(ctx context.Context, channels ChannelChecker) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		Status:     "healthy",
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if channels != nil {
		snap.Channels = channels.HealthAll(ctx)
		for _, ok := range snap.Channels {
			if !ok {
				snap.Status = "degraded"
				break
			}
		}
	}
	return snap
}

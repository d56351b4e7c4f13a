package rslimiter

import (
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aleister1102/waymirror/internal/config"
)

// ResourceUsage is a point-in-time view of process and system memory.
type ResourceUsage struct {
	ProcessAllocMB       float64
	SystemMemUsedPercent float64
}

// CurrentUsage samples memory usage. Sampling failures leave the system
// reading at zero, which never triggers the limiter.
func CurrentUsage() ResourceUsage {
	var usage ResourceUsage

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	usage.ProcessAllocMB = float64(memStats.Alloc) / (1024 * 1024)

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemUsedPercent = vmStat.UsedPercent
	}
	return usage
}

// ResourceLimiter throttles bulk downloads under memory pressure. Checks
// are sampled every N calls so the per-file cost stays negligible.
type ResourceLimiter struct {
	cfg     config.LimiterConfig
	logger  zerolog.Logger
	calls   int
	tripped bool

	sample func() ResourceUsage
}

// NewResourceLimiter creates a resource limiter.
func NewResourceLimiter(cfg config.LimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	return &ResourceLimiter{
		cfg:    cfg,
		logger: logger.With().Str("component", "ResourceLimiter").Logger(),
		sample: CurrentUsage,
	}
}

// ShouldThrottle reports whether the caller should stop queueing new
// work. Once the limit trips it stays tripped, so a crawl winds down
// instead of oscillating. Returns false when the limiter is disabled.
func (rl *ResourceLimiter) ShouldThrottle() bool {
	if !rl.cfg.Enabled {
		return false
	}
	if rl.tripped {
		return true
	}

	rl.calls++
	every := rl.cfg.CheckEveryN
	if every < 1 {
		every = 1
	}
	if rl.calls%every != 0 {
		return false
	}

	usage := rl.sample()
	if usage.SystemMemUsedPercent >= rl.cfg.MaxMemoryPercent {
		rl.tripped = true
		rl.logger.Warn().
			Float64("system_mem_percent", usage.SystemMemUsedPercent).
			Float64("limit_percent", rl.cfg.MaxMemoryPercent).
			Float64("process_alloc_mb", usage.ProcessAllocMB).
			Msg("Memory limit reached, winding down downloads")
		runtime.GC()
	}
	return rl.tripped
}

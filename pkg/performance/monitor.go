// Package performance provides measurement helpers for benchmarking: a
// process-level resource monitor and a latency percentile tracker. The
// bench command uses both to report what a sustained workload costs.
package performance

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/pulse/pkg/errors"
)

// ResourceUsage is a point-in-time view of the resources the process is
// consuming.
type ResourceUsage struct {
	// CPUPercent is the average process CPU use since monitoring began.
	CPUPercent float64 `json:"cpu_percent"`
	// MemoryRSS is the resident set size in bytes.
	MemoryRSS uint64 `json:"memory_rss"`
	// MemoryVMS is the virtual memory size in bytes.
	MemoryVMS uint64 `json:"memory_vms"`
	// HeapAllocMB is the Go heap currently in use, in MiB.
	HeapAllocMB uint64 `json:"heap_alloc_mb"`
	// SystemMemoryPercent is overall system memory utilization.
	SystemMemoryPercent float64 `json:"system_memory_percent"`
	// GoroutineCount is the number of live goroutines.
	GoroutineCount int `json:"goroutine_count"`
	// ThreadCount is the number of OS threads owned by the process.
	ThreadCount int32 `json:"thread_count"`
	// OpenFDs is the number of open file descriptors.
	OpenFDs int32 `json:"open_fds"`
}

// ResourceMonitor samples process resource usage relative to the moment
// it was created.
type ResourceMonitor struct {
	proc         *process.Process
	startCPUTime float64
	startTime    time.Time
}

// NewResourceMonitor creates a monitor anchored at the current process
// and instant.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open process handle")
	}

	m := &ResourceMonitor{proc: proc, startTime: time.Now()}
	if times, err := proc.Times(); err == nil {
		m.startCPUTime = times.Total()
	}
	return m, nil
}

// Usage returns the resource usage accumulated since the monitor was
// created. Probes that fail leave their fields at zero rather than
// failing the whole snapshot.
func (m *ResourceMonitor) Usage() ResourceUsage {
	var usage ResourceUsage

	if times, err := m.proc.Times(); err == nil {
		if elapsed := time.Since(m.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (times.Total() - m.startCPUTime) / elapsed * 100
		}
	}

	if info, err := m.proc.MemoryInfo(); err == nil {
		usage.MemoryRSS = info.RSS
		usage.MemoryVMS = info.VMS
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.HeapAllocMB = ms.HeapAlloc / 1024 / 1024

	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = m.proc.NumThreads()
	usage.OpenFDs, _ = m.proc.NumFDs()

	return usage
}

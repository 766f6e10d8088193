package workload

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is one sample of process and host memory.
type ResourceUsage struct {
	MemoryRSS             uint64  `json:"memory_rss"`
	MemoryVMS             uint64  `json:"memory_vms"`
	HeapAlloc             uint64  `json:"heap_alloc"`
	SystemMemoryPercent   float64 `json:"system_memory_percent"`
	SystemMemoryAvailable uint64  `json:"system_memory_available"`
	GoroutineCount        int     `json:"goroutines"`
	ThreadCount           int32   `json:"threads"`
}

// ResourceMonitor samples resource usage of the current process.
type ResourceMonitor struct {
	process *process.Process

	mu      sync.Mutex
	peakRSS uint64
	samples int
}

// NewResourceMonitor attaches to the current process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ResourceMonitor{process: proc}, nil
}

// Sample reads current usage. Fields whose source is unavailable on this
// platform stay zero.
func (rm *ResourceMonitor) Sample(ctx context.Context) ResourceUsage {
	usage := ResourceUsage{GoroutineCount: runtime.NumGoroutine()}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.HeapAlloc = ms.HeapAlloc

	if memInfo, err := rm.process.MemoryInfoWithContext(ctx); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}
	if vmStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}
	usage.ThreadCount, _ = rm.process.NumThreadsWithContext(ctx)

	rm.mu.Lock()
	rm.samples++
	if usage.MemoryRSS > rm.peakRSS {
		rm.peakRSS = usage.MemoryRSS
	}
	rm.mu.Unlock()
	return usage
}

// Watch samples every interval until ctx is done.
func (rm *ResourceMonitor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.Sample(ctx)
		}
	}
}

// PeakRSS returns the largest resident set size seen by Sample.
func (rm *ResourceMonitor) PeakRSS() uint64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.peakRSS
}

// Samples returns how many samples were taken.
func (rm *ResourceMonitor) Samples() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.samples
}

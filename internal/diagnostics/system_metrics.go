// Package diagnostics collects host resource metrics for the doctor command
// and the serve health surface.
package diagnostics

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics holds system-wide resource usage.
type SystemMetrics struct {
	// CPU
	CPUModel   string  `json:"cpu_model"`
	CPUCores   int     `json:"cpu_cores"`
	CPUThreads int     `json:"cpu_threads"`
	CPUPercent float64 `json:"cpu_percent"`

	// Memory (in MB)
	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	// Disk (in GB)
	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	// Load Average (Unix)
	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`
}

// SystemMetricsCollector collects system-wide statistics. CPU usage is
// computed as a delta between calls, so the first Collect reports zero.
type SystemMetricsCollector struct {
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64

	infoCollected bool
	cpuModel      string
	cpuCores      int
	cpuThreads    int
}

// NewSystemMetricsCollector creates a new system metrics collector.
func NewSystemMetricsCollector() *SystemMetricsCollector {
	return &SystemMetricsCollector{}
}

// Collect gathers current system statistics. Each reading is best-effort;
// unavailable sources leave zero values.
func (c *SystemMetricsCollector) Collect() SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := SystemMetrics{}
	c.collectHardwareInfo(&stats)
	c.collectMemoryInfo(&stats)
	c.collectCPUInfo(&stats)
	c.collectDiskInfo(&stats)
	c.collectLoadAvg(&stats)
	return stats
}

func (c *SystemMetricsCollector) collectMemoryInfo(stats *SystemMetrics) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	stats.MemTotalMB = float64(vm.Total) / 1024 / 1024
	stats.MemUsedMB = float64(vm.Used) / 1024 / 1024
	stats.MemPercent = vm.UsedPercent
}

func (c *SystemMetricsCollector) collectCPUInfo(stats *SystemMetrics) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idleTime := t.Idle + t.Iowait

	if c.lastCPUTotal > 0 {
		totalDelta := total - c.lastCPUTotal
		idleDelta := idleTime - c.lastCPUIdle
		if totalDelta > 0 {
			stats.CPUPercent = (1 - idleDelta/totalDelta) * 100
		}
	}

	c.lastCPUTotal = total
	c.lastCPUIdle = idleTime
}

func (c *SystemMetricsCollector) collectDiskInfo(stats *SystemMetrics) {
	usage, err := disk.Usage(rootDiskPath())
	if err != nil {
		return
	}
	stats.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	stats.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	stats.DiskPercent = usage.UsedPercent
}

func (c *SystemMetricsCollector) collectLoadAvg(stats *SystemMetrics) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	stats.LoadAvg1 = avg.Load1
	stats.LoadAvg5 = avg.Load5
	stats.LoadAvg15 = avg.Load15
}

func (c *SystemMetricsCollector) collectHardwareInfo(stats *SystemMetrics) {
	if !c.infoCollected {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = strings.TrimSpace(infos[0].ModelName)
		}
		if cores, err := cpu.Counts(false); err == nil && cores > 0 {
			c.cpuCores = cores
		}
		if threads, err := cpu.Counts(true); err == nil && threads > 0 {
			c.cpuThreads = threads
		}
		c.infoCollected = true
	}
	stats.CPUModel = c.cpuModel
	stats.CPUCores = c.cpuCores
	stats.CPUThreads = c.cpuThreads
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}

// Package sysmetrics wraps github.com/shirou/gopsutil to report this
// process's own CPU and memory usage, the same dependency and call shape the
// teacher uses for host sampling in cmd/minitsdb-system/sources/cpu.go and
// ram.go, pointed at os.Getpid() instead of the whole host.
package sysmetrics

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// Sample is one point-in-time process resource reading.
type Sample struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Snapshot samples the current process's CPU percent (since process start)
// and resident set size.
func Snapshot() (Sample, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return Sample{}, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return Sample{}, err
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Sample{}, err
	}

	return Sample{CPUPercent: cpuPercent, RSSBytes: memInfo.RSS}, nil
}

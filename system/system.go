// Package system reports host resource usage for the status command.
package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage is a point-in-time view of host load.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  float64
	MemoryTotalMB float64
}

// GetCPUUsage returns the current CPU usage as a percentage
func GetCPUUsage(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

// GetUsage returns CPU and memory usage.
func GetUsage(ctx context.Context) (Usage, error) {
	cpuPercent, err := GetCPUUsage(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory: %w", err)
	}
	return Usage{
		CPUPercent:    cpuPercent,
		MemoryPercent: vm.UsedPercent,
		MemoryUsedMB:  float64(vm.Used) / 1024 / 1024,
		MemoryTotalMB: float64(vm.Total) / 1024 / 1024,
	}, nil
}

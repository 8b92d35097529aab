// Package cpuspec sizes interpreter thread pools from the host CPU.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// MaxInterpreterThreads caps automatic thread selection. The sequence model
// is a small recurrent network; more threads only add scheduling overhead.
const MaxInterpreterThreads = 4

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName        string
	LogicalCores     int
	PerformanceCores int
}

// GetCPUSpec returns the host CPU description
func GetCPUSpec() CPUSpec {
	brand := cpuid.CPU.BrandName
	return CPUSpec{
		BrandName:        brand,
		LogicalCores:     cpuid.CPU.LogicalCores,
		PerformanceCores: performanceCores(brand),
	}
}

// GetOptimalThreadCount prefers performance cores on hybrid CPUs and falls
// back to logical cores. The result never exceeds runtime.NumCPU.
func (c CPUSpec) GetOptimalThreadCount() int {
	available := runtime.NumCPU()
	switch {
	case c.PerformanceCores > 0:
		return min(c.PerformanceCores, available)
	case c.LogicalCores > 0:
		return min(c.LogicalCores, available)
	default:
		return available
	}
}

// ThreadCount resolves a configured thread count. Zero means automatic:
// the optimal count capped at MaxInterpreterThreads. Explicit values are
// limited to the available CPUs.
func ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		return max(1, min(GetCPUSpec().GetOptimalThreadCount(), MaxInterpreterThreads))
	}
	return min(configured, available)
}

var (
	intelHybrid = regexp.MustCompile(`intel.*core.*i[3579]-(1[234])(\d)00`)
	intelUltra  = regexp.MustCompile(`intel.*core.*ultra\s+[579]\s+(?:processor\s+)?(\d{3})`)
	appleChip   = regexp.MustCompile(`apple\s+(m[1-4])(?:\s+(pro|max|ultra))?`)
)

// Performance core counts by Intel 12th-14th gen tier digit (i9 = 9xx00 etc.)
var intelTierPCores = map[string]int{"9": 8, "7": 8, "6": 6, "5": 6, "4": 6, "1": 4}

var intelUltraPCores = map[string]int{"285": 8, "265": 8, "255": 8, "245": 6, "235": 6, "225": 4}

var applePCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 6, "m3 max": 12, "m3 ultra": 24,
	"m4": 4, "m4 pro": 10, "m4 max": 12,
}

// performanceCores returns the P-core count of known hybrid CPUs, or 0.
func performanceCores(brand string) int {
	brand = strings.ToLower(brand)

	if m := intelUltra.FindStringSubmatch(brand); m != nil {
		return intelUltraPCores[m[1]]
	}
	if m := intelHybrid.FindStringSubmatch(brand); m != nil {
		return intelTierPCores[m[2]]
	}
	if m := appleChip.FindStringSubmatch(brand); m != nil {
		chip := m[1]
		if m[2] != "" {
			chip += " " + m[2]
		}
		return applePCores[chip]
	}
	return 0
}

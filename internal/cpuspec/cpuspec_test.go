package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceCores(t *testing.T) {
	tests := map[string]int{
		"12th Gen Intel(R) Core(TM) i9-12900K":   8,
		"13th Gen Intel(R) Core(TM) i5-13600K":   6,
		"13th Gen Intel(R) Core(TM) i3-13100":    4,
		"Intel(R) Core(TM) Ultra 5 225":          4,
		"Intel(R) Core(TM) Ultra 9 Processor 285": 8,
		"Apple M2 Max":                           12,
		"Apple M1":                               4,
		"AMD Ryzen 9 7950X 16-Core Processor":    0,
		"Intel(R) Xeon(R) CPU E5-2680 v4":        0,
	}
	for brand, want := range tests {
		t.Run(brand, func(t *testing.T) {
			assert.Equal(t, want, performanceCores(brand))
		})
	}
}

func TestGetOptimalThreadCountBounded(t *testing.T) {
	spec := CPUSpec{PerformanceCores: 1024}
	assert.Equal(t, runtime.NumCPU(), spec.GetOptimalThreadCount())

	spec = CPUSpec{}
	assert.Equal(t, runtime.NumCPU(), spec.GetOptimalThreadCount())
}

func TestThreadCount(t *testing.T) {
	auto := ThreadCount(0)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, MaxInterpreterThreads)

	assert.Equal(t, 1, ThreadCount(1))
	assert.Equal(t, runtime.NumCPU(), ThreadCount(runtime.NumCPU()+100))
}

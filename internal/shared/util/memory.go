package util

import (
	"runtime"
)

// HeapAllocMB returns the live heap size in megabytes.
func HeapAllocMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1 << 20)
}
